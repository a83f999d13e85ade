package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables on startup. The advisory lock
// serializes DDL across concurrent api/worker boots.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	uploaded_by TEXT,
	uploaded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_jobs (
	id TEXT PRIMARY KEY,
	artifact_id TEXT NOT NULL REFERENCES artifacts(id),
	warranty_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	failed_stage TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_one_active_per_artifact
	ON pipeline_jobs(artifact_id) WHERE status IN ('pending', 'running');
CREATE INDEX IF NOT EXISTS idx_jobs_artifact_created
	ON pipeline_jobs(artifact_id, created_at DESC);

CREATE TABLE IF NOT EXISTS job_transitions (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES pipeline_jobs(id),
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_job ON job_transitions(job_id, id);

CREATE TABLE IF NOT EXISTS warranty_records (
	warranty_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	artifact_id TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	serial TEXT NOT NULL DEFAULT '',
	invoice_no TEXT NOT NULL DEFAULT '',
	purchase_date TIMESTAMPTZ,
	coverage_months INTEGER NOT NULL DEFAULT 0,
	expiry_date TIMESTAMPTZ,
	terms JSONB NOT NULL DEFAULT '[]'::jsonb,
	exclusions JSONB NOT NULL DEFAULT '[]'::jsonb,
	claim_steps JSONB NOT NULL DEFAULT '[]'::jsonb,
	chosen JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (warranty_id, version)
);

CREATE TABLE IF NOT EXISTS parsed_fields (
	job_id TEXT NOT NULL,
	warranty_id TEXT NOT NULL,
	candidates JSONB NOT NULL DEFAULT '{}'::jsonb,
	raw_text TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parsed_fields_warranty
	ON parsed_fields(warranty_id, created_at DESC);

CREATE TABLE IF NOT EXISTS warranty_summaries (
	warranty_id TEXT NOT NULL,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_warranty
	ON warranty_summaries(warranty_id, created_at DESC);

CREATE TABLE IF NOT EXISTS terms_cache (
	brand TEXT NOT NULL,
	model TEXT NOT NULL,
	entry JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (brand, model)
);

CREATE TABLE IF NOT EXISTS behaviour_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	warranty_id TEXT NOT NULL,
	type TEXT NOT NULL,
	at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_warranty_user
	ON behaviour_events(warranty_id, user_id, at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
