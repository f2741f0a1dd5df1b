// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/models"
)

func TestConcurrentBallots_SameVoter(t *testing.T) {
	env := newTestEnv(t)
	id, slate := env.openElection(t)

	const attempts = 15
	var wg sync.WaitGroup
	var created, conflicts, other atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := env.castBallot(id, "voter-1", slate.Pick(i))
			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			default:
				other.Add(1)
				t.Logf("Unexpected status %d: %s", w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 accepted ballot, got %d", created.Load())
	}
	if conflicts.Load() != attempts-1 {
		t.Errorf("Expected %d duplicates, got %d", attempts-1, conflicts.Load())
	}
	if other.Load() != 0 {
		t.Errorf("Expected no other outcomes, got %d", other.Load())
	}

	count, err := env.ledger.CountBallots(t.Context(), id)
	if err != nil {
		t.Fatalf("Failed to count ballots: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored ballot, got %d", count)
	}
}

func TestConcurrentBallots_ManyVoters(t *testing.T) {
	env := newTestEnv(t)
	id, slate := env.openElection(t)

	const voters = 25
	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := env.castBallot(id, fmt.Sprintf("voter-%d", i), slate.Pick(i))
			if w.Code == http.StatusCreated {
				created.Add(1)
			} else {
				t.Logf("Voter %d got status %d: %s", i, w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	if created.Load() != voters {
		t.Errorf("Expected %d accepted ballots, got %d", voters, created.Load())
	}

	tally, err := env.engine.Tally(t.Context(), id)
	if err != nil {
		t.Fatalf("Failed to tally: %v", err)
	}
	if tally.TotalBallots != voters {
		t.Errorf("Expected %d ballots in tally, got %d", voters, tally.TotalBallots)
	}
	for pos, entries := range tally.Positions {
		var sum int64
		for _, e := range entries {
			sum += e.Count
		}
		if sum != voters {
			t.Errorf("Expected %s votes to sum to %d, got %d", pos, voters, sum)
		}
	}
}

func TestConcurrentBallots_DuringClose(t *testing.T) {
	env := newTestEnv(t)
	id, slate := env.openElection(t)

	const voters = 10
	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := env.castBallot(id, fmt.Sprintf("voter-%d", i), slate.Pick(i))
			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
			default:
				t.Errorf("Voter %d got unexpected status %d", i, w.Code)
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.controller.Transition(t.Context(), id, models.StatusClosed, election.TransitionOptions{Settings: env.cfg.Settings}); err != nil {
			t.Errorf("Failed to close election: %v", err)
		}
	}()
	wg.Wait()

	// Every accepted ballot is counted; nothing lands after close
	count, err := env.ledger.CountBallots(t.Context(), id)
	if err != nil {
		t.Fatalf("Failed to count ballots: %v", err)
	}
	if count != int64(created.Load()) {
		t.Errorf("Expected %d stored ballots, got %d", created.Load(), count)
	}
}
