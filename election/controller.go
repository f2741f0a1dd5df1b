// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/models"
)

// Settings are the club-wide switches that gate opening an election. They are
// passed explicitly into every transition.
type Settings struct {
	VotingEnabled       bool `yaml:"votingEnabled"       split_words:"true"`
	RegistrationEnabled bool `yaml:"registrationEnabled" split_words:"true"`
	// RequireFullSlate refuses to open an election with an empty position
	RequireFullSlate bool `yaml:"requireFullSlate" split_words:"true"`
}

// DefaultSettings allows voting and requires every position to be contested
func DefaultSettings() Settings {
	return Settings{
		VotingEnabled:    true,
		RequireFullSlate: true,
	}
}

type TransitionOptions struct {
	Settings Settings
	// Reopen must be set to move a closed election back to open
	Reopen bool
}

// ElectionUpdate holds admin edits; nil fields are left unchanged
type ElectionUpdate struct {
	Title       *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// Controller owns the draft -> open -> closed state machine
type Controller struct {
	store   *Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewController(store *Store, m *metrics.Metrics) *Controller {
	return &Controller{
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Controller) Store() *Store {
	return c.store
}

// CreateElection stores a new election in draft
func (c *Controller) CreateElection(ctx context.Context, title, description string, startsAt, endsAt *time.Time) (*models.Election, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.Reject(models.KindInvalidInput, "title is required")
	}
	if err := validateSchedule(startsAt, endsAt); err != nil {
		return nil, err
	}
	startsAt, endsAt = inUTC(startsAt), inUTC(endsAt)

	now := c.now()
	e := &models.Election{
		ID:          auth.NewID(),
		Title:       title,
		Description: description,
		Status:      models.StatusDraft,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Insert(ctx, c.store.db, e); err != nil {
		return nil, c.infra("create election", err)
	}

	slog.Info("election created", "election_id", e.ID, "title", e.Title)
	return e, nil
}

func (c *Controller) GetElection(ctx context.Context, id string) (*models.Election, error) {
	e, err := c.store.Get(ctx, c.store.db, id)
	if err != nil {
		return nil, c.infra("get election", err)
	}
	return e, nil
}

func (c *Controller) ListElections(ctx context.Context) ([]models.Election, error) {
	elections, err := c.store.List(ctx, c.store.db)
	if err != nil {
		return nil, c.infra("list elections", err)
	}
	return elections, nil
}

// ActiveElection returns the open election or ErrElectionNotFound
func (c *Controller) ActiveElection(ctx context.Context) (*models.Election, error) {
	e, err := c.store.FindOpen(ctx, c.store.db)
	if err != nil {
		return nil, c.infra("find open election", err)
	}
	if e == nil {
		return nil, models.Reject(models.KindElectionNotFound, "no election is open")
	}
	return e, nil
}

// UpdateElection edits title, description and schedule of a draft or open election
func (c *Controller) UpdateElection(ctx context.Context, id string, upd ElectionUpdate) (*models.Election, error) {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, c.infra("begin update election", err)
	}
	defer tx.Rollback()

	e, err := c.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, c.infra("load election", err)
	}
	if e.Status == models.StatusClosed {
		return nil, models.Reject(models.KindElectionNotEditable, "election %s is closed", id)
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, models.Reject(models.KindInvalidInput, "title is required")
		}
		e.Title = title
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.StartsAt != nil {
		e.StartsAt = inUTC(upd.StartsAt)
	}
	if upd.EndsAt != nil {
		e.EndsAt = inUTC(upd.EndsAt)
	}
	if err := validateSchedule(e.StartsAt, e.EndsAt); err != nil {
		return nil, err
	}
	e.UpdatedAt = c.now()

	if err := c.store.UpdateDetails(ctx, tx, e); err != nil {
		return nil, c.infra("update election", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, c.infra("commit update election", err)
	}

	slog.Info("election updated", "election_id", id)
	return e, nil
}

// DeleteElection removes a draft election and its candidates
func (c *Controller) DeleteElection(ctx context.Context, id string) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return c.infra("begin delete election", err)
	}
	defer tx.Rollback()

	e, err := c.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return c.infra("load election", err)
	}
	if e.Status != models.StatusDraft {
		return models.Reject(models.KindElectionNotEditable, "only draft elections can be deleted")
	}
	if err := c.store.Delete(ctx, tx, id); err != nil {
		return c.infra("delete election", err)
	}
	if err := tx.Commit(); err != nil {
		return c.infra("commit delete election", err)
	}

	slog.Info("election deleted", "election_id", id)
	return nil
}

// Transition moves an election to target. Failures are *models.Rejection
// values of kind InvalidTransition naming the violated invariant.
func (c *Controller) Transition(ctx context.Context, id string, target models.Status, opts TransitionOptions) (*models.Election, error) {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, c.infra("begin transition", err)
	}
	defer tx.Rollback()

	e, err := c.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, c.infra("load election", err)
	}
	from := e.Status
	now := c.now()

	switch {
	case from == models.StatusDraft && target == models.StatusOpen:
		err = c.open(ctx, tx, e, opts, false, now)
	case from == models.StatusClosed && target == models.StatusOpen:
		if !opts.Reopen {
			return nil, models.RejectTransition(models.InvariantReopenNotRequested,
				"a closed election can only be reopened explicitly")
		}
		slog.Warn("reopening closed election; results published so far are provisional",
			"election_id", id, "closed_at", e.ClosedAt, "reopen_count", e.ReopenCount+1)
		err = c.open(ctx, tx, e, opts, true, now)
	case from == models.StatusOpen && target == models.StatusClosed:
		err = c.close(ctx, tx, e, now)
	default:
		return nil, models.RejectTransition(models.InvariantStateMachine,
			"cannot move election from %s to %s", from, target)
	}
	if err != nil {
		return nil, c.infra("transition election", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, c.infra("commit transition", err)
	}

	c.metrics.Transition(from, target)
	slog.Info("election transitioned", "election_id", id, "from", from, "to", target,
		"slate_guard_relaxed", e.SlateGuardRelaxed)
	return e, nil
}

// Reopen moves a closed election back to open
func (c *Controller) Reopen(ctx context.Context, id string, settings Settings) (*models.Election, error) {
	return c.Transition(ctx, id, models.StatusOpen, TransitionOptions{Settings: settings, Reopen: true})
}

func (c *Controller) open(ctx context.Context, tx Querier, e *models.Election, opts TransitionOptions, reopen bool, now time.Time) error {
	if !opts.Settings.VotingEnabled {
		return models.RejectTransition(models.InvariantVotingDisabled, "voting is disabled in club settings")
	}
	if opts.Settings.RegistrationEnabled {
		return models.RejectTransition(models.InvariantRegistrationOpen,
			"registration is open; voting and registration are mutually exclusive")
	}

	other, err := c.store.FindOpen(ctx, tx)
	if err != nil {
		return err
	}
	if other != nil && other.ID != e.ID {
		return models.RejectTransition(models.InvariantSingleOpenElection,
			"election %q is already open", other.Title)
	}

	counts, err := c.store.CandidateCounts(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	var empty []models.Position
	for _, pos := range models.AllPositions() {
		if counts[pos] == 0 {
			empty = append(empty, pos)
		}
	}
	relaxed := len(empty) > 0
	if relaxed {
		if opts.Settings.RequireFullSlate {
			r := models.RejectTransition(models.InvariantFullSlate, "no candidates for %s", joinPositions(empty))
			r.Positions = empty
			return r
		}
		slog.Warn("opening election with uncontested positions; no ballot can be complete until filled",
			"election_id", e.ID, "empty_positions", joinPositions(empty))
	}

	ok, err := c.store.MarkOpen(ctx, tx, e.ID, e.Status, relaxed, reopen, now)
	if db.IsUniqueViolation(err) {
		return models.RejectTransition(models.InvariantSingleOpenElection, "another election is already open")
	}
	if err != nil {
		return err
	}
	if !ok {
		return models.RejectTransition(models.InvariantStateMachine, "election changed state concurrently")
	}

	e.Status = models.StatusOpen
	e.OpenedAt = &now
	e.ClosedAt = nil
	e.SlateGuardRelaxed = relaxed
	if reopen {
		e.ReopenCount++
	}
	e.UpdatedAt = now
	return nil
}

func (c *Controller) close(ctx context.Context, tx Querier, e *models.Election, now time.Time) error {
	ok, err := c.store.MarkClosed(ctx, tx, e.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return models.RejectTransition(models.InvariantStateMachine, "election changed state concurrently")
	}
	e.Status = models.StatusClosed
	e.ClosedAt = &now
	e.UpdatedAt = now
	return nil
}

// SetResultsPublic toggles result visibility in any state
func (c *Controller) SetResultsPublic(ctx context.Context, id string, public bool) (*models.Election, error) {
	found, err := c.store.SetResultsPublic(ctx, c.store.db, id, public, c.now())
	if err != nil {
		return nil, c.infra("set results public", err)
	}
	if !found {
		return nil, models.Reject(models.KindElectionNotFound, "election %s does not exist", id)
	}

	slog.Info("election results visibility changed", "election_id", id, "results_public", public)
	return c.GetElection(ctx, id)
}

// infra wraps store errors and records them; rejections pass through
func (c *Controller) infra(op string, err error) error {
	err = models.Infra(op, err)
	if _, ok := models.AsRejection(err); !ok {
		slog.Error("election store failure", "op", op, "error", err)
		c.metrics.InfraFailure(err)
	}
	return err
}

func validateSchedule(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return models.Reject(models.KindInvalidInput, "ends_at must be after starts_at")
	}
	return nil
}

// inUTC stores schedule instants in UTC; the deadline sweep compares them
// against a UTC clock
func inUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func joinPositions(ps []models.Position) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
