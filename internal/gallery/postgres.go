package gallery

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Postgres persists face records in the face_records table. Embeddings are
// stored as JSON arrays; they are only ever read back whole.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed face store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Add(ctx context.Context, subject string, rec Record) error {
	emb, err := json.Marshal(rec.Embedding)
	if err != nil {
		return err
	}
	if rec.EnrolledAt.IsZero() {
		rec.EnrolledAt = time.Now()
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO face_records (subject, token_id, embedding, enrolled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject, token_id) DO NOTHING
	`, subject, rec.TokenID, emb, rec.EnrolledAt)
	return err
}

func (p *Postgres) Has(ctx context.Context, subject, tokenID string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM face_records WHERE subject = $1 AND token_id = $2)
	`, subject, tokenID)
	var has bool
	if err := row.Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

// List returns records ordered by enrollment time so the first-match scan
// behaves the same across restarts.
func (p *Postgres) List(ctx context.Context, subject string) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT token_id, embedding, enrolled_at
		FROM face_records
		WHERE subject = $1
		ORDER BY enrolled_at, token_id
	`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var emb []byte
		if err := rows.Scan(&rec.TokenID, &emb, &rec.EnrolledAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(emb, &rec.Embedding); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Remove(ctx context.Context, subject, tokenID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM face_records WHERE subject = $1 AND token_id = $2
	`, subject, tokenID)
	return err
}
