// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const electionColumns = `id, title, description, status, starts_at, ends_at,
	results_public, slate_guard_relaxed, opened_at, closed_at, reopen_count,
	created_at, updated_at`

// Store persists elections and their lifecycle state
type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() db.Dialect {
	return s.dialect
}

func scanElection(row interface{ Scan(...any) error }) (*models.Election, error) {
	var e models.Election
	var status string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &status, &e.StartsAt, &e.EndsAt,
		&e.ResultsPublic, &e.SlateGuardRelaxed, &e.OpenedAt, &e.ClosedAt, &e.ReopenCount,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = models.Status(status)
	return &e, nil
}

func (s *Store) Insert(ctx context.Context, q Querier, e *models.Election) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO election (id, title, description, status, starts_at, ends_at,
		                      results_public, slate_guard_relaxed, reopen_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Title, e.Description, string(e.Status), e.StartsAt, e.EndsAt,
		e.ResultsPublic, e.SlateGuardRelaxed, e.ReopenCount, e.CreatedAt, e.UpdatedAt)
	return err
}

// Get loads an election, returning ErrElectionNotFound when absent
func (s *Store) Get(ctx context.Context, q Querier, id string) (*models.Election, error) {
	return s.get(ctx, q, id, "")
}

// GetForUpdate loads an election and locks its row until the transaction ends
func (s *Store) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Election, error) {
	return s.get(ctx, tx, id, s.dialect.UpdateLock())
}

func (s *Store) get(ctx context.Context, q Querier, id, lock string) (*models.Election, error) {
	row := q.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE id = $1`+lock, id)
	e, err := scanElection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Reject(models.KindElectionNotFound, "election %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns all elections, newest first
func (s *Store) List(ctx context.Context, q Querier) ([]models.Election, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+electionColumns+` FROM election ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, err
		}
		elections = append(elections, *e)
	}
	return elections, rows.Err()
}

// FindOpen returns the open election, or nil if none is open
func (s *Store) FindOpen(ctx context.Context, q Querier) (*models.Election, error) {
	row := q.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE status = $1`, string(models.StatusOpen))
	e, err := scanElection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// UpdateDetails writes the admin-editable fields
func (s *Store) UpdateDetails(ctx context.Context, q Querier, e *models.Election) error {
	_, err := q.ExecContext(ctx, `
		UPDATE election
		SET title = $1, description = $2, starts_at = $3, ends_at = $4, updated_at = $5
		WHERE id = $6
	`, e.Title, e.Description, e.StartsAt, e.EndsAt, e.UpdatedAt, e.ID)
	return err
}

// SetResultsPublic updates the flag and reports whether the election exists
func (s *Store) SetResultsPublic(ctx context.Context, q Querier, id string, public bool, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE election SET results_public = $1, updated_at = $2 WHERE id = $3
	`, public, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkOpen moves an election from `from` to open. It reports false when the
// election was no longer in `from`. A second open election violates
// idx_election_single_open.
func (s *Store) MarkOpen(ctx context.Context, q Querier, id string, from models.Status, relaxed bool, reopened bool, now time.Time) (bool, error) {
	reopenInc := 0
	if reopened {
		reopenInc = 1
	}
	res, err := q.ExecContext(ctx, `
		UPDATE election
		SET status = $1, opened_at = $2, closed_at = NULL, slate_guard_relaxed = $3,
		    reopen_count = reopen_count + $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`, string(models.StatusOpen), now, relaxed, reopenInc, now, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkClosed moves an open election to closed
func (s *Store) MarkClosed(ctx context.Context, q Querier, id string, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE election
		SET status = $1, closed_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, string(models.StatusClosed), now, now, id, string(models.StatusOpen))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) Delete(ctx context.Context, q Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM election WHERE id = $1`, id)
	return err
}

// CandidateCounts returns the number of candidates per position
func (s *Store) CandidateCounts(ctx context.Context, q Querier, id string) (map[models.Position]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT position, COUNT(*) FROM candidate WHERE election_id = $1 GROUP BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Position]int)
	for rows.Next() {
		var pos string
		var n int
		if err := rows.Scan(&pos, &n); err != nil {
			return nil, err
		}
		counts[models.Position(pos)] = n
	}
	return counts, rows.Err()
}

// DueForClose returns open elections whose scheduled end has passed
func (s *Store) DueForClose(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM election
		WHERE status = $1 AND ends_at IS NOT NULL AND ends_at <= $2
	`, string(models.StatusOpen), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LockStatus reads an election's status inside tx and holds a share lock on
// the row, so a concurrent transition waits for tx to finish
func LockStatus(ctx context.Context, tx *sql.Tx, dialect db.Dialect, id string) (models.Status, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM election WHERE id = $1`+dialect.ShareLock(), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.Reject(models.KindElectionNotFound, "election %s does not exist", id)
	}
	if err != nil {
		return "", err
	}
	return models.Status(status), nil
}
