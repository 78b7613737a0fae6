package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema holds every table MetroCheck needs. Rules keep their insertion
// sequence so registry order survives restarts; removed rules keep their row
// with removed_at set so the id is never handed out again.
const Schema = `
CREATE TABLE IF NOT EXISTS rules (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL,
	weight DOUBLE PRECISION NOT NULL,
	check_kind TEXT NOT NULL,
	field TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	removed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	product_id TEXT,
	file_name TEXT NOT NULL,
	object_key TEXT NOT NULL,
	content_type TEXT NOT NULL,
	report_key TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_status ON extractions(status);
CREATE TABLE IF NOT EXISTS reports (
	id BIGSERIAL PRIMARY KEY,
	product_id TEXT NOT NULL,
	extraction_id TEXT,
	score INTEGER NOT NULL,
	badge TEXT NOT NULL,
	rules_evaluated INTEGER NOT NULL,
	outcomes JSONB NOT NULL,
	scored_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_product ON reports(product_id, scored_at DESC);
CREATE INDEX IF NOT EXISTS idx_reports_extraction ON reports(extraction_id);`

// EnsureSchema creates the tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
