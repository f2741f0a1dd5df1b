// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package candidate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/testutil"
)

func newRegistry(t *testing.T) (*candidate.Registry, *election.Store) {
	t.Helper()
	store := testutil.SetupTestDB(t)
	return candidate.NewRegistry(store, nil), store
}

func TestAddCandidate(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusDraft)

	manifesto := "More study rooms"
	c, err := r.AddCandidate(ctx, electionID, candidate.Input{
		FullName:   " Alice Smith ",
		Position:   "President",
		Department: "Physics",
		Batch:      "2024",
		Manifesto:  &manifesto,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", c.FullName)
	assert.Equal(t, models.PositionPresident, c.Position)

	got, err := r.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	require.NotNil(t, got.Manifesto)
	assert.Equal(t, manifesto, *got.Manifesto)
	assert.Nil(t, got.PhotoRef)
}

func TestAddCandidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
		input  candidate.Input
		want   error
	}{
		{"empty name", models.StatusDraft, candidate.Input{FullName: "", Position: "president"}, models.ErrInvalidInput},
		{"unknown position", models.StatusDraft, candidate.Input{FullName: "Bob", Position: "treasurer"}, models.ErrInvalidInput},
		{"closed election", models.StatusClosed, candidate.Input{FullName: "Bob", Position: "president"}, models.ErrElectionNotEditable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newRegistry(t)
			electionID := testutil.CreateTestElection(t, store.DB(), tt.status)

			_, err := r.AddCandidate(context.Background(), electionID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAddCandidate_UnknownElection(t *testing.T) {
	r, _ := newRegistry(t)

	_, err := r.AddCandidate(context.Background(), "missing", candidate.Input{FullName: "Bob", Position: "president"})
	assert.ErrorIs(t, err, models.ErrElectionNotFound)
}

func TestAddCandidate_OpenElection(t *testing.T) {
	r, store := newRegistry(t)
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusOpen)

	_, err := r.AddCandidate(context.Background(), electionID, candidate.Input{FullName: "Late Entry", Position: "secretary"})
	assert.NoError(t, err)
}

func TestListCandidates_Order(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusDraft)

	testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionSecretary, "Zed")
	testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionPresident, "Yara")
	testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionVicePresident, "Xavier")
	testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionPresident, "Anna")

	all, err := r.ListCandidates(ctx, electionID, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)

	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.FullName
	}
	assert.Equal(t, []string{"Anna", "Yara", "Xavier", "Zed"}, names)

	pos := models.PositionPresident
	presidents, err := r.ListCandidates(ctx, electionID, &pos)
	require.NoError(t, err)
	assert.Len(t, presidents, 2)
	for _, c := range presidents {
		assert.Equal(t, models.PositionPresident, c.Position)
	}
}

func TestListCandidates_UnknownElection(t *testing.T) {
	r, _ := newRegistry(t)

	_, err := r.ListCandidates(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, models.ErrElectionNotFound)
}

func TestListCandidates_Empty(t *testing.T) {
	r, store := newRegistry(t)
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusDraft)

	candidates, err := r.ListCandidates(context.Background(), electionID, nil)
	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestUpdateCandidate(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusDraft)
	id := testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionPresident, "Alice")

	c, err := r.UpdateCandidate(ctx, id, candidate.Input{FullName: "Alice B. Smith", Position: "vice_president"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B. Smith", c.FullName)
	assert.Equal(t, models.PositionVicePresident, c.Position)

	_, err = r.UpdateCandidate(ctx, "missing", candidate.Input{FullName: "X", Position: "president"})
	assert.ErrorIs(t, err, models.ErrCandidateNotFound)
}

// castOne casts a ballot in an already open election
func castOne(t *testing.T, store *election.Store, electionID, voterID string, sel map[models.Position]string) {
	t.Helper()
	ledger := ballot.NewLedger(store, nil, nil)
	_, err := ledger.CastBallot(context.Background(), ballot.Request{
		ElectionID: electionID,
		VoterID:    voterID,
		Selections: sel,
	})
	require.NoError(t, err)
}

func TestCandidateWithVotes(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusOpen)
	slate := testutil.SeedFullSlate(t, store.DB(), electionID)

	castOne(t, store, electionID, "voter-1", slate.Pick(0))
	voted := slate[models.PositionPresident][0]
	unvoted := slate[models.PositionPresident][1]

	// Renaming keeps the position and is allowed
	_, err := r.UpdateCandidate(ctx, voted, candidate.Input{FullName: "Renamed", Position: "president"})
	require.NoError(t, err)

	_, err = r.UpdateCandidate(ctx, voted, candidate.Input{FullName: "Renamed", Position: "secretary"})
	assert.ErrorIs(t, err, models.ErrCandidateHasVotes)

	assert.ErrorIs(t, r.RemoveCandidate(ctx, voted), models.ErrCandidateHasVotes)
	require.NoError(t, r.RemoveCandidate(ctx, unvoted))

	_, err = r.GetCandidate(ctx, unvoted)
	assert.ErrorIs(t, err, models.ErrCandidateNotFound)
}

func TestRemoveCandidate_ClosedElection(t *testing.T) {
	r, store := newRegistry(t)
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusClosed)
	id := testutil.AddTestCandidate(t, store.DB(), electionID, models.PositionSecretary, "Carol")

	assert.ErrorIs(t, r.RemoveCandidate(context.Background(), id), models.ErrElectionNotEditable)
}

func TestSortBallotOrder(t *testing.T) {
	candidates := []models.Candidate{
		{ID: "3", FullName: "Same", Position: models.PositionPresident},
		{ID: "1", FullName: "Same", Position: models.PositionPresident},
		{ID: "2", FullName: "Alpha", Position: models.PositionSecretary},
	}
	candidate.SortBallotOrder(candidates)

	assert.Equal(t, "1", candidates[0].ID)
	assert.Equal(t, "3", candidates[1].ID)
	assert.Equal(t, "2", candidates[2].ID)
}
