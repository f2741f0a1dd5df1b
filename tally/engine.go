// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"time"

	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/models"
)

// Engine computes tallies from committed ballots
type Engine struct {
	db      *sql.DB
	dialect db.Dialect
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEngine(store *election.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      store.DB(),
		dialect: store.Dialect(),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tally counts votes per candidate for every position. All reads share one
// snapshot, so the result reflects a prefix of the commit order and never a
// partially applied ballot.
func (e *Engine) Tally(ctx context.Context, electionID string) (*models.Tally, error) {
	start := time.Now()
	defer e.metrics.ObserveTally(start)

	t, err := e.compute(ctx, electionID)
	if err != nil {
		err = models.Infra("tally", err)
		if _, ok := models.AsRejection(err); !ok {
			slog.Error("tally failed", "election_id", electionID, "error", err)
			e.metrics.InfraFailure(err)
		}
		return nil, err
	}
	return t, nil
}

func (e *Engine) compute(ctx context.Context, electionID string) (*models.Tally, error) {
	tx, err := e.db.BeginTx(ctx, e.dialect.SnapshotTxOptions())
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM election WHERE id = $1)`, electionID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.Reject(models.KindElectionNotFound, "election %s does not exist", electionID)
	}

	counts, err := selectionCounts(ctx, tx, electionID)
	if err != nil {
		return nil, err
	}

	t := &models.Tally{
		ElectionID: electionID,
		Positions:  make(map[models.Position][]models.TallyEntry, len(models.AllPositions())),
	}
	for _, pos := range models.AllPositions() {
		t.Positions[pos] = []models.TallyEntry{}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, full_name, position FROM candidate WHERE election_id = $1
	`, electionID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var entry models.TallyEntry
		var pos string
		if err := rows.Scan(&entry.CandidateID, &entry.FullName, &pos); err != nil {
			rows.Close()
			return nil, err
		}
		entry.Count = counts[entry.CandidateID]
		p := models.Position(pos)
		t.Positions[p] = append(t.Positions[p], entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballot WHERE election_id = $1`, electionID).Scan(&t.TotalBallots)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for pos := range t.Positions {
		Rank(t.Positions[pos])
	}
	t.ComputedAt = e.now()
	return t, nil
}

func selectionCounts(ctx context.Context, tx *sql.Tx, electionID string) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT candidate_id, COUNT(*) FROM ballot_selection
		WHERE election_id = $1
		GROUP BY candidate_id
	`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Rank sorts entries by count descending, then candidate id, and numbers them from 1
func Rank(entries []models.TallyEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].CandidateID < entries[j].CandidateID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
