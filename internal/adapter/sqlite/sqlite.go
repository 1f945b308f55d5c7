// Package sqlite stores listings in a local SQLite file. It has the same
// insert-if-absent semantics as the PostgreSQL store and is meant for local
// runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS regions (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		title         TEXT NOT NULL,
		body          TEXT NOT NULL DEFAULT '',
		region_id     INTEGER NOT NULL REFERENCES regions (id),
		discovered_at TIMESTAMP NOT NULL,
		fingerprint   TEXT NOT NULL UNIQUE,
		url           TEXT NOT NULL,
		business_id   TEXT,
		source        TEXT,
		company_url   TEXT,
		is_duplicate  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS listings_region_id_idx ON listings (region_id)`,
	`CREATE TABLE IF NOT EXISTS failed_listings (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		url                    TEXT NOT NULL UNIQUE,
		fingerprint            TEXT NOT NULL,
		failure_reason         TEXT NOT NULL,
		attempts               INTEGER NOT NULL DEFAULT 1,
		last_attempt_timestamp TIMESTAMP NOT NULL
	)`,
}

// Open opens the database at dsn, e.g. "file:jobs.db?_busy_timeout=5000".
// SQLite allows one writer, so the pool is limited to one connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	return db, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
