package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS assistant_kv (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps documents in a single JSONB table
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects and creates the table if needed
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// Supabase's pooler (PgBouncer in transaction mode) cannot use prepared statements
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create assistant_kv table: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRow(ctx, "SELECT value FROM assistant_kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO assistant_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := p.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, "DELETE FROM assistant_kv WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.db.Close()
	return nil
}
