// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/models"
)

// Request is one voter's submission
type Request struct {
	ElectionID string
	VoterID    string
	Selections map[models.Position]string
	IPHash     *string
	UserAgent  *string
}

// CommitListener is told about every committed ballot
type CommitListener interface {
	BallotCommitted(electionID string)
}

// Ledger is the append-only record of cast ballots
type Ledger struct {
	db       *sql.DB
	dialect  db.Dialect
	metrics  *metrics.Metrics
	listener CommitListener
	now      func() time.Time
}

// NewLedger builds a ledger; listener may be nil
func NewLedger(store *election.Store, m *metrics.Metrics, listener CommitListener) *Ledger {
	return &Ledger{
		db:       store.DB(),
		dialect:  store.Dialect(),
		metrics:  m,
		listener: listener,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CastBallot validates and commits a ballot in one transaction. The
// UNIQUE(election_id, voter_id) constraint is the authoritative guard against
// double voting; the HasVoted check before the insert only saves a round trip.
//
// An InfrastructureFailure from the commit itself leaves the outcome unknown;
// callers must check HasVoted before resubmitting.
func (l *Ledger) CastBallot(ctx context.Context, req Request) (string, error) {
	ballotID, err := l.cast(ctx, req)
	if err != nil {
		l.metrics.BallotRejected(err)
		if _, ok := models.AsRejection(err); ok {
			slog.Debug("ballot rejected", "election_id", req.ElectionID, "error", err)
		} else {
			slog.Error("ballot ledger failure", "election_id", req.ElectionID, "error", err)
			l.metrics.InfraFailure(err)
		}
		return "", err
	}

	l.metrics.BallotCast()
	slog.Info("ballot cast", "election_id", req.ElectionID, "ballot_id", ballotID)
	if l.listener != nil {
		l.listener.BallotCommitted(req.ElectionID)
	}
	return ballotID, nil
}

func (l *Ledger) cast(ctx context.Context, req Request) (string, error) {
	voterID := strings.TrimSpace(req.VoterID)
	if voterID == "" {
		return "", models.Reject(models.KindInvalidInput, "voter identifier is required")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", models.Infra("begin cast ballot", err)
	}
	defer tx.Rollback()

	// Share-locked until commit, so a concurrent close waits for this ballot
	status, err := election.LockStatus(ctx, tx, l.dialect, req.ElectionID)
	if err != nil {
		return "", models.Infra("load election", err)
	}
	if status != models.StatusOpen {
		r := models.Reject(models.KindElectionNotOpen, "election is %s", status)
		r.Status = status
		return "", r
	}

	// A returning voter hears "already voted" whatever they selected this time
	voted, err := hasVoted(ctx, tx, req.ElectionID, voterID)
	if err != nil {
		return "", models.Infra("check prior ballot", err)
	}
	if voted {
		return "", duplicate()
	}

	if err := checkComplete(req.Selections); err != nil {
		return "", err
	}

	slots, err := l.candidateSlots(ctx, tx, req.ElectionID)
	if err != nil {
		return "", models.Infra("load candidates", err)
	}
	if err := checkSelections(req.Selections, slots); err != nil {
		return "", err
	}

	ballotID := auth.NewID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ballot (id, election_id, voter_id, cast_at, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ballotID, req.ElectionID, voterID, l.now(), req.IPHash, req.UserAgent)
	if db.IsUniqueViolation(err) {
		return "", duplicate()
	}
	if err != nil {
		return "", models.Infra("insert ballot", err)
	}

	for _, pos := range models.AllPositions() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ballot_selection (ballot_id, election_id, position, candidate_id)
			VALUES ($1, $2, $3, $4)
		`, ballotID, req.ElectionID, string(pos), req.Selections[pos])
		if db.IsForeignKeyViolation(err) {
			r := models.Reject(models.KindInvalidSelection, "candidate %s is not running for %s", req.Selections[pos], pos)
			r.Positions = []models.Position{pos}
			return "", r
		}
		if err != nil {
			return "", models.Infra("insert ballot selection", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", models.Infra("commit ballot", err)
	}
	return ballotID, nil
}

func duplicate() error {
	return models.Reject(models.KindDuplicateBallot, "you have already voted in this election")
}

// checkComplete rejects ballots that leave any position empty
func checkComplete(sel map[models.Position]string) error {
	var missing []models.Position
	for _, pos := range models.AllPositions() {
		if strings.TrimSpace(sel[pos]) == "" {
			missing = append(missing, pos)
		}
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, p := range missing {
			names[i] = string(p)
		}
		r := models.Reject(models.KindIncompleteBallot, "no selection for %s", strings.Join(names, ", "))
		r.Positions = missing
		return r
	}
	return nil
}

// checkSelections rejects unknown slots and candidates that are not running
// in this election for the slot they fill
func checkSelections(sel map[models.Position]string, slots map[string]models.Position) error {
	for pos, candidateID := range sel {
		if !pos.Valid() {
			return models.Reject(models.KindInvalidSelection, "unknown position %q", string(pos))
		}
		running, ok := slots[candidateID]
		if !ok {
			r := models.Reject(models.KindInvalidSelection, "candidate %s is not running in this election", candidateID)
			r.Positions = []models.Position{pos}
			return r
		}
		if running != pos {
			r := models.Reject(models.KindInvalidSelection, "candidate %s is running for %s, not %s", candidateID, running, pos)
			r.Positions = []models.Position{pos}
			return r
		}
	}
	return nil
}

// candidateSlots maps each candidate of the election to its position
func (l *Ledger) candidateSlots(ctx context.Context, tx *sql.Tx, electionID string) (map[string]models.Position, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, position FROM candidate WHERE election_id = $1`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[string]models.Position)
	for rows.Next() {
		var id, pos string
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, err
		}
		slots[id] = models.Position(pos)
	}
	return slots, rows.Err()
}

// HasVoted reports whether the voter already has a committed ballot. It is a
// convenience for clients and never a substitute for CastBallot's guard.
func (l *Ledger) HasVoted(ctx context.Context, electionID, voterID string) (bool, error) {
	voted, err := hasVoted(ctx, l.db, electionID, voterID)
	if err != nil {
		err = models.Infra("has voted", err)
		l.metrics.InfraFailure(err)
		return false, err
	}
	return voted, nil
}

func hasVoted(ctx context.Context, q election.Querier, electionID, voterID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM ballot
			WHERE election_id = $1 AND voter_id = $2
		)
	`, electionID, voterID).Scan(&exists)
	return exists, err
}

// VoterBallot returns the voter's ballot with its selections, or nil if none
func (l *Ledger) VoterBallot(ctx context.Context, electionID, voterID string) (*models.Ballot, error) {
	var b models.Ballot
	err := l.db.QueryRowContext(ctx, `
		SELECT id, election_id, voter_id, cast_at FROM ballot
		WHERE election_id = $1 AND voter_id = $2
	`, electionID, voterID).Scan(&b.ID, &b.ElectionID, &b.VoterID, &b.CastAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Infra("load voter ballot", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT position, candidate_id FROM ballot_selection WHERE ballot_id = $1
	`, b.ID)
	if err != nil {
		return nil, models.Infra("load ballot selections", err)
	}
	defer rows.Close()

	b.Selections = make(map[models.Position]string)
	for rows.Next() {
		var pos, candidateID string
		if err := rows.Scan(&pos, &candidateID); err != nil {
			return nil, models.Infra("scan ballot selection", err)
		}
		b.Selections[models.Position(pos)] = candidateID
	}
	if err := rows.Err(); err != nil {
		return nil, models.Infra("load ballot selections", err)
	}
	return &b, nil
}

// CountBallots returns the number of committed ballots for an election
func (l *Ledger) CountBallots(ctx context.Context, electionID string) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballot WHERE election_id = $1`, electionID).Scan(&n)
	if err != nil {
		return 0, models.Infra("count ballots", err)
	}
	return n, nil
}
