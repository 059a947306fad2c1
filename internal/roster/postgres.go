package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Postgres persists the registry in the students table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed registry.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Enroll inserts the student; a conflicting token id fails ErrAlreadyEnrolled.
func (p *Postgres) Enroll(ctx context.Context, subject string, st Student) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO students (subject, token_id, roll, name, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject, token_id) DO NOTHING
	`, subject, st.TokenID, st.Roll, st.Name, st.Email, st.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyEnrolled
	}
	return nil
}

// Lookup returns the student for a token id, or nil when unknown.
func (p *Postgres) Lookup(ctx context.Context, subject, tokenID string) (*Student, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT token_id, roll, name, email, created_at
		FROM students
		WHERE subject = $1 AND token_id = $2
	`, subject, tokenID)
	var st Student
	if err := row.Scan(&st.TokenID, &st.Roll, &st.Name, &st.Email, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// List returns the subject's students in enrollment order.
func (p *Postgres) List(ctx context.Context, subject string) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT token_id, roll, name, email, created_at
		FROM students
		WHERE subject = $1
		ORDER BY created_at, token_id
	`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.TokenID, &st.Roll, &st.Name, &st.Email, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
