package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS storefront_kv (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore implements Store using a single PostgreSQL table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres builds a Postgres-backed store. Call EnsureSchema once at startup.
func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the key-value table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create storefront_kv: %w", err)
	}
	return nil
}

// Get returns the value for key, treating expired rows as absent.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRow(ctx, `SELECT value, expires_at FROM storefront_kv WHERE key = $1`, key)
	var (
		value     []byte
		expiresAt *time.Time
	)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if expiresAt != nil && !time.Now().Before(*expiresAt) {
		_, _ = s.db.Exec(ctx, `DELETE FROM storefront_kv WHERE key = $1 AND expires_at <= now()`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Set upserts value for key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl).UTC()
		expiresAt = &t
	}
	_, err := s.db.Exec(ctx, `INSERT INTO storefront_kv (key, value, expires_at, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt)
	return err
}

// Delete removes key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM storefront_kv WHERE key = $1`, key)
	return err
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
