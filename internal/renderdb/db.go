// Package renderdb persists render jobs in sqlite.
package renderdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the base schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single writer; modernc sqlite serializes writes anyway and this keeps
	// "database is locked" errors out of the job worker.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS render_jobs (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL,
			compositor    TEXT NOT NULL,
			params        TEXT NOT NULL DEFAULT '{}',
			output_path   TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'pending',
			error         TEXT NOT NULL DEFAULT '',
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_render_jobs_created
			ON render_jobs(created_at DESC);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}
