// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package candidate

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/models"
)

// Input is the admin-editable part of a candidate
type Input struct {
	FullName   string
	Position   string
	Department string
	Batch      string
	Manifesto  *string
	PhotoRef   *string
}

func (in Input) validate() (models.Position, error) {
	if strings.TrimSpace(in.FullName) == "" {
		return "", models.Reject(models.KindInvalidInput, "full_name is required")
	}
	pos, err := models.ParsePosition(in.Position)
	if err != nil {
		return "", models.Reject(models.KindInvalidInput, "position must be one of: president, vice_president, secretary")
	}
	return pos, nil
}

const candidateColumns = `id, election_id, full_name, position, department, batch,
	manifesto, photo_ref, created_at, updated_at`

// Registry manages candidates scoped to an election
type Registry struct {
	db      *sql.DB
	dialect db.Dialect
	metrics *metrics.Metrics
}

func NewRegistry(store *election.Store, m *metrics.Metrics) *Registry {
	return &Registry{db: store.DB(), dialect: store.Dialect(), metrics: m}
}

func scanCandidate(row interface{ Scan(...any) error }) (*models.Candidate, error) {
	var c models.Candidate
	var pos string
	err := row.Scan(&c.ID, &c.ElectionID, &c.FullName, &pos, &c.Department, &c.Batch,
		&c.Manifesto, &c.PhotoRef, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Position = models.Position(pos)
	return &c, nil
}

// AddCandidate registers a candidate for a draft or open election
func (r *Registry) AddCandidate(ctx context.Context, electionID string, in Input) (*models.Candidate, error) {
	pos, err := in.validate()
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, r.infra("begin add candidate", err)
	}
	defer tx.Rollback()

	if err := r.requireEditable(ctx, tx, electionID); err != nil {
		return nil, r.infra("load election", err)
	}

	now := time.Now().UTC()
	c := &models.Candidate{
		ID:         auth.NewID(),
		ElectionID: electionID,
		FullName:   strings.TrimSpace(in.FullName),
		Position:   pos,
		Department: in.Department,
		Batch:      in.Batch,
		Manifesto:  in.Manifesto,
		PhotoRef:   in.PhotoRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidate (id, election_id, full_name, position, department, batch,
		                       manifesto, photo_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.ElectionID, c.FullName, string(c.Position), c.Department, c.Batch,
		c.Manifesto, c.PhotoRef, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, r.infra("insert candidate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, r.infra("commit add candidate", err)
	}

	slog.Info("candidate added", "election_id", electionID, "candidate_id", c.ID, "position", c.Position)
	return c, nil
}

// UpdateCandidate rewrites a candidate's details. Moving a candidate who
// already has votes to another position is refused.
func (r *Registry) UpdateCandidate(ctx context.Context, id string, in Input) (*models.Candidate, error) {
	pos, err := in.validate()
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, r.infra("begin update candidate", err)
	}
	defer tx.Rollback()

	c, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, r.infra("load candidate", err)
	}
	if err := r.requireEditable(ctx, tx, c.ElectionID); err != nil {
		return nil, r.infra("load election", err)
	}

	if pos != c.Position {
		votes, err := r.voteCount(ctx, tx, id)
		if err != nil {
			return nil, r.infra("count candidate votes", err)
		}
		if votes > 0 {
			return nil, models.Reject(models.KindCandidateHasVotes,
				"candidate %s already has %d votes as %s", id, votes, c.Position)
		}
	}

	c.FullName = strings.TrimSpace(in.FullName)
	c.Position = pos
	c.Department = in.Department
	c.Batch = in.Batch
	c.Manifesto = in.Manifesto
	c.PhotoRef = in.PhotoRef
	c.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE candidate
		SET full_name = $1, position = $2, department = $3, batch = $4,
		    manifesto = $5, photo_ref = $6, updated_at = $7
		WHERE id = $8
	`, c.FullName, string(c.Position), c.Department, c.Batch, c.Manifesto, c.PhotoRef, c.UpdatedAt, id)
	if db.IsForeignKeyViolation(err) {
		return nil, models.Reject(models.KindCandidateHasVotes, "candidate %s is referenced by ballots", id)
	}
	if err != nil {
		return nil, r.infra("update candidate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, r.infra("commit update candidate", err)
	}

	slog.Info("candidate updated", "candidate_id", id)
	return c, nil
}

// RemoveCandidate deletes a candidate that no ballot references
func (r *Registry) RemoveCandidate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.infra("begin remove candidate", err)
	}
	defer tx.Rollback()

	c, err := r.get(ctx, tx, id)
	if err != nil {
		return r.infra("load candidate", err)
	}
	if err := r.requireEditable(ctx, tx, c.ElectionID); err != nil {
		return r.infra("load election", err)
	}

	votes, err := r.voteCount(ctx, tx, id)
	if err != nil {
		return r.infra("count candidate votes", err)
	}
	if votes > 0 {
		return models.Reject(models.KindCandidateHasVotes, "candidate %s already has %d votes", id, votes)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM candidate WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return models.Reject(models.KindCandidateHasVotes, "candidate %s is referenced by ballots", id)
	}
	if err != nil {
		return r.infra("delete candidate", err)
	}
	if err := tx.Commit(); err != nil {
		return r.infra("commit remove candidate", err)
	}

	slog.Info("candidate removed", "election_id", c.ElectionID, "candidate_id", id)
	return nil
}

func (r *Registry) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	c, err := r.get(ctx, r.db, id)
	if err != nil {
		return nil, r.infra("get candidate", err)
	}
	return c, nil
}

// ListCandidates returns an election's candidates in ballot order, optionally
// restricted to one position. Candidates of closed elections stay visible.
func (r *Registry) ListCandidates(ctx context.Context, electionID string, position *models.Position) ([]models.Candidate, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM election WHERE id = $1)
	`, electionID).Scan(&exists)
	if err != nil {
		return nil, r.infra("check election", err)
	}
	if !exists {
		return nil, models.Reject(models.KindElectionNotFound, "election %s does not exist", electionID)
	}

	query := `SELECT ` + candidateColumns + ` FROM candidate WHERE election_id = $1`
	args := []any{electionID}
	if position != nil {
		query += ` AND position = $2`
		args = append(args, string(*position))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.infra("list candidates", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, r.infra("scan candidate", err)
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.infra("list candidates", err)
	}

	SortBallotOrder(candidates)
	return candidates, nil
}

// SortBallotOrder orders candidates by position, then name, then id
func SortBallotOrder(candidates []models.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Position != b.Position {
			return a.Position.Order() < b.Position.Order()
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})
}

func (r *Registry) get(ctx context.Context, q election.Querier, id string) (*models.Candidate, error) {
	row := q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Reject(models.KindCandidateNotFound, "candidate %s does not exist", id)
	}
	return c, err
}

// requireEditable share-locks the election and refuses closed ones
func (r *Registry) requireEditable(ctx context.Context, tx *sql.Tx, electionID string) error {
	status, err := election.LockStatus(ctx, tx, r.dialect, electionID)
	if err != nil {
		return err
	}
	if status == models.StatusClosed {
		return models.Reject(models.KindElectionNotEditable, "election %s is closed", electionID)
	}
	return nil
}

func (r *Registry) voteCount(ctx context.Context, q election.Querier, id string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballot_selection WHERE candidate_id = $1`, id).Scan(&n)
	return n, err
}

func (r *Registry) infra(op string, err error) error {
	err = models.Infra(op, err)
	if _, ok := models.AsRejection(err); !ok {
		slog.Error("candidate registry failure", "op", op, "error", err)
		r.metrics.InfraFailure(err)
	}
	return err
}
