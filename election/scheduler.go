// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/clubvote/models"
)

// Scheduler closes open elections once their ends_at has passed
type Scheduler struct {
	controller *Controller
	interval   time.Duration
}

func NewScheduler(controller *Controller, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{controller: controller, interval: interval}
}

// Run sweeps until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep closes every election that is due and returns how many it closed
func (s *Scheduler) Sweep(ctx context.Context) int {
	ids, err := s.controller.store.DueForClose(ctx, s.controller.now())
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to query elections due for close", "error", err)
		}
		return 0
	}

	closed := 0
	for _, id := range ids {
		_, err := s.controller.Transition(ctx, id, models.StatusClosed, TransitionOptions{})
		switch {
		case err == nil:
			closed++
			slog.Info("election closed on schedule", "election_id", id)
		case errors.Is(err, models.ErrInvalidTransition):
			// closed by an admin or another instance in the meantime
		default:
			slog.Error("scheduled close failed", "election_id", id, "error", err)
		}
	}
	return closed
}
