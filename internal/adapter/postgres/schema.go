package postgres

// schemaStatements create the crawler tables. Each statement is idempotent
// and they run one at a time, in order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS regions (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id            BIGSERIAL PRIMARY KEY,
		title         TEXT NOT NULL,
		body          TEXT NOT NULL DEFAULT '',
		region_id     BIGINT NOT NULL REFERENCES regions (id),
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		fingerprint   TEXT NOT NULL UNIQUE,
		url           TEXT NOT NULL,
		business_id   TEXT,
		source        TEXT,
		company_url   TEXT,
		is_duplicate  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS listings_region_id_idx ON listings (region_id)`,
	`CREATE TABLE IF NOT EXISTS failed_listings (
		id                     BIGSERIAL PRIMARY KEY,
		url                    TEXT NOT NULL UNIQUE,
		fingerprint            TEXT NOT NULL,
		failure_reason         TEXT NOT NULL,
		attempts               INT NOT NULL DEFAULT 1,
		last_attempt_timestamp TIMESTAMPTZ NOT NULL
	)`,
}
