package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresBackend stores values in the kv_entries table created by the
// migrations under internal/db/migrations.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend wraps an open database handle. The backend takes
// ownership of db and closes it on Close.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (p *PostgresBackend) Init(ctx context.Context) error {
	const query = `SELECT 1 FROM kv_entries LIMIT 1`
	var one int
	err := p.db.QueryRowContext(ctx, query).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("kv: kv_entries not ready (run `roster migrate up`): %w", err)
	}
	return nil
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1`
	var value string
	if err := p.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (p *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`
	_, err := p.db.ExecContext(ctx, query, key, string(value), time.Now())
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = $1`
	_, err := p.db.ExecContext(ctx, query, key)
	return err
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}
