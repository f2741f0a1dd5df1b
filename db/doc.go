// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Opening

	conn, dialect, err := db.Open("sqlite", "clubvote.db")

Both PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) are supported. The
Dialect value carries the few statements that differ: row locks, the
snapshot isolation level used by tallies and the column type for instants
(TIMESTAMPTZ on PostgreSQL).

# Schema Creation

CreateSchema is safe to call multiple times; it uses IF NOT EXISTS for all
tables and indexes.

	err := db.CreateSchema(conn, dialect)

# Tables

  - election: lifecycle state, schedule and results visibility
  - candidate: one row per candidate and position
  - ballot: one ballot per voter per election
  - ballot_selection: one chosen candidate per position per ballot

# Constraints

	UNIQUE(election_id, voter_id) on ballot
	UNIQUE INDEX on election(status) WHERE status = 'open'
	ballot_selection(election_id, position, candidate_id) → candidate, ON DELETE RESTRICT

IsUniqueViolation and IsForeignKeyViolation classify driver errors by code.
*/
package db
