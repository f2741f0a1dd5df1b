// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the clubvote API server.

clubvote runs the elections of a student club: an admin drafts an election,
registers candidates for president, vice president and secretary, opens it,
and members cast exactly one ballot each. Results are tallied on demand and
streamed live over a websocket.

# Starting the Server

	CLUBVOTE_ADMIN_KEY=... CLUBVOTE_IDENTITY_SECRET=... go run . -d clubvote.db

Or against PostgreSQL:

	go run . -t postgres -d "postgres://..."

# Configuration

Settings are layered: defaults, then the YAML file given by -c, then a .env
file, then environment variables, then flags.

Required settings:

  - DATABASE_URL (-d): connection string or SQLite path
  - CLUBVOTE_ADMIN_KEY (--admin-key): key for admin endpoints
  - CLUBVOTE_IDENTITY_SECRET (--identity-secret): verifies voter tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - CLUBVOTE_SETTINGS_VOTING_ENABLED, CLUBVOTE_SETTINGS_REGISTRATION_ENABLED,
    CLUBVOTE_SETTINGS_REQUIRE_FULL_SLATE: club settings checked on open

# Architecture

  - election: election store, lifecycle controller and close scheduler
  - candidate: candidate registry
  - ballot: ballot ledger with the one-ballot-per-voter guarantee
  - tally: tally engine and live snapshot hub
  - handlers, router, middleware: HTTP surface
  - client: Go client for voters
  - models, db, auth, metrics, cliparse: shared plumbing

The HTTP server, tally hub and close scheduler run under one errgroup and stop
together on SIGINT or SIGTERM.
*/
package main
