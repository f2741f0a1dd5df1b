// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package tally counts committed ballots and streams snapshots to live
// subscribers. Tallies are always recomputed from the ballot table.
package tally
