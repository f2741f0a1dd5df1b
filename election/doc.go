// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package election stores elections and drives their lifecycle.

	draft ──open──▶ open ──close──▶ closed
	                  ▲                │
	                  └────reopen──────┘

Opening requires voting enabled, registration disabled, no other open
election, and (unless the club relaxes it) a candidate for every position.
At most one election is open at a time; a partial unique index on
election(status) enforces it in the store.

Scheduler closes open elections whose ends_at has passed.
*/
package election
