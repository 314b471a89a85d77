// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open connects to the database named by dbType ("postgres" or "sqlite")
// and verifies the connection.
func Open(dbType, url string) (*sql.DB, error) {
	driver := dbType
	if driver == "" {
		driver = "sqlite"
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// SQLite allows a single writer; serialize through one connection
	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return conn, nil
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The statements below are valid on both PostgreSQL and SQLite.
// Timestamps are always supplied by the application in UTC.
const schema = `
-- Awards
CREATE TABLE IF NOT EXISTS award (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    voting_start TIMESTAMP,
    voting_end TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_award_active ON award(active);

-- Nominees
CREATE TABLE IF NOT EXISTS nominee (
    id TEXT PRIMARY KEY,
    award_id TEXT NOT NULL REFERENCES award(id) ON DELETE CASCADE,
    name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nominee_award_id ON nominee(award_id);

-- Votes: one per (voter, award). The UNIQUE constraint is the final arbiter
-- for concurrent submissions.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL,
    award_id TEXT NOT NULL REFERENCES award(id) ON DELETE CASCADE,
    nominee_id TEXT NOT NULL REFERENCES nominee(id) ON DELETE CASCADE,
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    origin_hash TEXT,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (voter_id, award_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_award_nominee ON vote(award_id, nominee_id);

-- Bias entries are never deleted; inactive rows are the audit trail.
CREATE TABLE IF NOT EXISTS vote_bias (
    id TEXT PRIMARY KEY,
    award_id TEXT NOT NULL REFERENCES award(id) ON DELETE CASCADE,
    nominee_id TEXT NOT NULL REFERENCES nominee(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL,
    reason TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    deactivated_by TEXT,
    deactivated_at TIMESTAMP,
    deactivation_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_vote_bias_award ON vote_bias(award_id);

-- At most one active bias per (award, nominee)
CREATE UNIQUE INDEX IF NOT EXISTS idx_vote_bias_active ON vote_bias(award_id, nominee_id) WHERE active;
`
