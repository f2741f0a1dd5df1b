// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/tally"
	"github.com/danielhkuo/clubvote/testutil"
)

var ignoreSQLOpener = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

type hubFixture struct {
	store      *election.Store
	hub        *tally.Hub
	ledger     *ballot.Ledger
	electionID string
	slate      testutil.Slate
}

func setupHub(t *testing.T, interval time.Duration) hubFixture {
	t.Helper()
	store := testutil.SetupTestDB(t)
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusOpen)
	hub := tally.NewHub(tally.NewEngine(store, nil), nil, interval)
	return hubFixture{
		store:      store,
		hub:        hub,
		ledger:     ballot.NewLedger(store, nil, hub),
		electionID: electionID,
		slate:      testutil.SeedFullSlate(t, store.DB(), electionID),
	}
}

func runHub(t *testing.T, hub *tally.Hub) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, hub.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func receive(t *testing.T, ch <-chan *models.Tally) *models.Tally {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tally snapshot")
		return nil
	}
}

func TestHub_SubscribeSendsCurrentTally(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.hub.Subscribe(ctx, f.electionID)
	require.NoError(t, err)

	snap := receive(t, ch)
	assert.Equal(t, f.electionID, snap.ElectionID)
	assert.Equal(t, int64(0), snap.TotalBallots)
	assert.Equal(t, 1, f.hub.Subscribers(f.electionID))
}

func TestHub_BroadcastsOnCommit(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, time.Hour)
	stop := runHub(t, f.hub)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.hub.Subscribe(ctx, f.electionID)
	require.NoError(t, err)
	receive(t, ch)

	_, err = f.ledger.CastBallot(context.Background(), ballot.Request{
		ElectionID: f.electionID,
		VoterID:    "voter-1",
		Selections: f.slate.Pick(0),
	})
	require.NoError(t, err)

	snap := receive(t, ch)
	assert.Equal(t, int64(1), snap.TotalBallots)
	assert.Equal(t, int64(1), counts(snap.Positions[models.PositionPresident])[f.slate[models.PositionPresident][0]])
}

func TestHub_PollPicksUpExternalBallots(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, 20*time.Millisecond)
	stop := runHub(t, f.hub)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.hub.Subscribe(ctx, f.electionID)
	require.NoError(t, err)
	receive(t, ch)

	// A ledger without a listener stands in for another instance
	other := ballot.NewLedger(f.store, nil, nil)
	_, err = other.CastBallot(context.Background(), ballot.Request{
		ElectionID: f.electionID,
		VoterID:    "remote-voter",
		Selections: f.slate.Pick(1),
	})
	require.NoError(t, err)

	snap := receive(t, ch)
	assert.Equal(t, int64(1), snap.TotalBallots)
}

func TestHub_KeepsOnlyLatestSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, time.Hour)
	stop := runHub(t, f.hub)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.hub.Subscribe(ctx, f.electionID)
	require.NoError(t, err)
	// Leave the initial snapshot unread while ballots arrive

	for _, voter := range []string{"v1", "v2", "v3"} {
		_, err := f.ledger.CastBallot(context.Background(), ballot.Request{
			ElectionID: f.electionID,
			VoterID:    voter,
			Selections: f.slate.Pick(0),
		})
		require.NoError(t, err)
	}

	// Stale snapshots are replaced, so reading eventually yields the newest
	require.Eventually(t, func() bool {
		select {
		case snap := <-ch:
			return snap.TotalBallots == 3
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.hub.Subscribe(ctx, f.electionID)
	require.NoError(t, err)
	receive(t, ch)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not closed")
	}
	require.Eventually(t, func() bool {
		return f.hub.Subscribers(f.electionID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_SubscribeUnknownElection(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)
	f := setupHub(t, time.Hour)

	_, err := f.hub.Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrElectionNotFound)
	assert.Equal(t, 0, f.hub.Subscribers("missing"))
}
