// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dialect Dialect) error {
	_, err := db.Exec(strings.ReplaceAll(schema, "{{timestamp}}", dialect.TimestampType()))
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The same DDL runs on PostgreSQL and SQLite; {{timestamp}} is the dialect's
// column type for instants.
const schema = `
-- Elections
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    starts_at {{timestamp}},
    ends_at {{timestamp}},
    results_public BOOLEAN NOT NULL DEFAULT FALSE,
    slate_guard_relaxed BOOLEAN NOT NULL DEFAULT FALSE,
    opened_at {{timestamp}},
    closed_at {{timestamp}},
    reopen_count INTEGER NOT NULL DEFAULT 0,
    created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_election_status ON election(status);

-- At most one open election
CREATE UNIQUE INDEX IF NOT EXISTS idx_election_single_open ON election(status) WHERE status = 'open';

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    full_name TEXT NOT NULL,
    position TEXT NOT NULL CHECK (position IN ('president', 'vice_president', 'secretary')),
    department TEXT NOT NULL DEFAULT '',
    batch TEXT NOT NULL DEFAULT '',
    manifesto TEXT,
    photo_ref TEXT,
    created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (election_id, position, id)
);

CREATE INDEX IF NOT EXISTS idx_candidate_election_id ON candidate(election_id);

-- Ballots
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    cast_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ip_hash TEXT,
    user_agent TEXT,
    UNIQUE (election_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_ballot_election_id ON ballot(election_id);

-- One selection per position per ballot
CREATE TABLE IF NOT EXISTS ballot_selection (
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    election_id TEXT NOT NULL,
    position TEXT NOT NULL CHECK (position IN ('president', 'vice_president', 'secretary')),
    candidate_id TEXT NOT NULL,
    PRIMARY KEY (ballot_id, position),
    FOREIGN KEY (election_id, position, candidate_id)
        REFERENCES candidate(election_id, position, id) ON DELETE RESTRICT
);

CREATE INDEX IF NOT EXISTS idx_ballot_selection_candidate ON ballot_selection(candidate_id);
CREATE INDEX IF NOT EXISTS idx_ballot_selection_election ON ballot_selection(election_id, position);
`
