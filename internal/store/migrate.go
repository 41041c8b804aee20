package store

import (
	"context"
	"fmt"
	"strings"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL,
  contact_email TEXT NOT NULL,
  salary_min BIGINT NOT NULL DEFAULT 0,
  salary_max BIGINT NOT NULL DEFAULT 0,
  salary_currency TEXT NOT NULL DEFAULT '',
  employment_type TEXT NOT NULL DEFAULT '',
  department TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  board_id TEXT NOT NULL,
  status TEXT NOT NULL,
  external_url TEXT NOT NULL DEFAULT '',
  error_message TEXT NOT NULL DEFAULT '',
  screenshot_path TEXT NOT NULL DEFAULT '',
  posted_at TEXT NOT NULL DEFAULT '',
  retry_count INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL,
  UNIQUE (job_id, board_id)
);

CREATE INDEX IF NOT EXISTS idx_postings_job ON postings(job_id);
CREATE INDEX IF NOT EXISTS idx_postings_status ON postings(status);

CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER NOT NULL
);
`

// Migrate brings the schema up to date. It is safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// ---- Schema v1: tables ----
	for _, stmt := range splitStatements(schemaV1) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}

	var v int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v); err != nil {
		return err
	}
	if v < schemaVersion {
		if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO schema_version (version) VALUES (?)`), schemaVersion); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func splitStatements(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
