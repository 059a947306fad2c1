package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and applies the
// schema.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		subject    TEXT NOT NULL,
		token_id   TEXT NOT NULL,
		roll       TEXT NOT NULL,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (subject, token_id)
	);

	CREATE TABLE IF NOT EXISTS face_records (
		subject     TEXT NOT NULL,
		token_id    TEXT NOT NULL,
		embedding   JSONB NOT NULL,
		enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (subject, token_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_entries (
		subject   TEXT NOT NULL,
		day       TEXT NOT NULL,
		position  INT  NOT NULL,
		token_id  TEXT NOT NULL,
		roll      TEXT NOT NULL,
		name      TEXT NOT NULL,
		email     TEXT NOT NULL,
		status    TEXT NOT NULL DEFAULT 'absent',
		marked_at TIMESTAMPTZ,
		PRIMARY KEY (subject, day, token_id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance_entries(subject, day);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
