package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Postgres persists day sheets in the attendance_entries table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed sheet store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Exists(ctx context.Context, subject, day string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_entries WHERE subject = $1 AND day = $2)
	`, subject, day)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Seed inserts the initial rows in one transaction so a write failure leaves
// no partial sheet behind.
func (p *Postgres) Seed(ctx context.Context, subject, day string, entries []Entry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_entries (subject, day, position, token_id, roll, name, email, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (subject, day, token_id) DO NOTHING
		`, subject, day, i, e.TokenID, e.Roll, e.Name, e.Email, string(e.Status)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) Entries(ctx context.Context, subject, day string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT token_id, roll, name, email, status, marked_at
		FROM attendance_entries
		WHERE subject = $1 AND day = $2
		ORDER BY position
	`, subject, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.TokenID, &e.Roll, &e.Name, &e.Email, &status, &e.MarkedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, subject, day, tokenID string) (*Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT token_id, roll, name, email, status, marked_at
		FROM attendance_entries
		WHERE subject = $1 AND day = $2 AND token_id = $3
	`, subject, day, tokenID)
	var e Entry
	var status string
	if err := row.Scan(&e.TokenID, &e.Roll, &e.Name, &e.Email, &status, &e.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Status = Status(status)
	return &e, nil
}

// SetPresent only flips absent rows, so the first mark's timestamp can never
// be overwritten.
func (p *Postgres) SetPresent(ctx context.Context, subject, day, tokenID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE attendance_entries
		SET status = 'present', marked_at = $4
		WHERE subject = $1 AND day = $2 AND token_id = $3 AND status = 'absent'
	`, subject, day, tokenID, at)
	return err
}

func (p *Postgres) Append(ctx context.Context, subject, day string, e Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance_entries (subject, day, position, token_id, roll, name, email, status)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM attendance_entries WHERE subject = $1 AND day = $2),
			$3, $4, $5, $6, $7)
		ON CONFLICT (subject, day, token_id) DO NOTHING
	`, subject, day, e.TokenID, e.Roll, e.Name, e.Email, string(e.Status))
	return err
}
