// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/models"
)

const (
	defaultPollInterval = 2 * time.Second
	pendingBuffer       = 64
)

type subscriber struct {
	ch chan *models.Tally
	// highest total delivered so far; totals only grow
	sent int64
}

// offer replaces any undelivered snapshot with t. Callers hold Hub.mu.
func (s *subscriber) offer(t *models.Tally) {
	if t.TotalBallots < s.sent {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- t:
		s.sent = t.TotalBallots
	default:
	}
}

// Hub fans live tally snapshots out to subscribers. It recomputes an
// election's tally when a ballot commits locally and polls on an interval to
// pick up ballots committed by other instances.
type Hub struct {
	engine   *Engine
	metrics  *metrics.Metrics
	interval time.Duration

	mu    sync.Mutex
	subs  map[string]map[*subscriber]struct{}
	last  map[string]int64
	dirty chan string
}

func NewHub(engine *Engine, m *metrics.Metrics, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Hub{
		engine:   engine,
		metrics:  m,
		interval: interval,
		subs:     make(map[string]map[*subscriber]struct{}),
		last:     make(map[string]int64),
		dirty:    make(chan string, pendingBuffer),
	}
}

// Subscribe returns a channel that receives the current tally immediately and
// a fresh one after every change. The channel holds at most one snapshot and
// is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, electionID string) (<-chan *models.Tally, error) {
	sub := &subscriber{ch: make(chan *models.Tally, 1), sent: -1}

	// Register before computing so no broadcast between the two is missed
	h.mu.Lock()
	if h.subs[electionID] == nil {
		h.subs[electionID] = make(map[*subscriber]struct{})
	}
	h.subs[electionID][sub] = struct{}{}
	h.mu.Unlock()

	t, err := h.engine.Tally(ctx, electionID)
	if err != nil {
		h.unsubscribe(electionID, sub)
		return nil, err
	}

	h.mu.Lock()
	sub.offer(t)
	if _, ok := h.last[electionID]; !ok {
		h.last[electionID] = t.TotalBallots
	}
	h.mu.Unlock()

	h.metrics.SubscriberAdded()
	slog.Debug("tally subscriber added", "election_id", electionID)

	go func() {
		<-ctx.Done()
		h.unsubscribe(electionID, sub)
		h.metrics.SubscriberRemoved()
		slog.Debug("tally subscriber removed", "election_id", electionID)
	}()

	return sub.ch, nil
}

func (h *Hub) unsubscribe(electionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[electionID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subs, electionID)
		delete(h.last, electionID)
	}
}

// BallotCommitted schedules a recompute for the election. It never blocks;
// if the queue is full the next poll picks the change up.
func (h *Hub) BallotCommitted(electionID string) {
	select {
	case h.dirty <- electionID:
	default:
	}
}

// Subscribers returns the number of live subscriptions for an election
func (h *Hub) Subscribers(electionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[electionID])
}

// Run recomputes tallies until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-h.dirty:
			h.refresh(ctx, id, false)
		case <-ticker.C:
			for _, id := range h.watched() {
				h.refresh(ctx, id, true)
			}
		}
	}
}

func (h *Hub) watched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	return ids
}

// refresh recomputes and broadcasts an election's tally. With onlyIfChanged
// it skips the broadcast when the ballot total is unchanged.
func (h *Hub) refresh(ctx context.Context, electionID string, onlyIfChanged bool) {
	if h.Subscribers(electionID) == 0 {
		return
	}

	t, err := h.engine.Tally(ctx, electionID)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("live tally refresh failed", "election_id", electionID, "error", err)
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.last[electionID]; ok && onlyIfChanged && last == t.TotalBallots {
		return
	}
	subs := h.subs[electionID]
	if len(subs) == 0 {
		return
	}
	h.last[electionID] = t.TotalBallots
	for sub := range subs {
		sub.offer(t)
	}
}
