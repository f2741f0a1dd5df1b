// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/tally"
	"github.com/danielhkuo/clubvote/testutil"
)

// testEnv wires every component against a fresh test database
type testEnv struct {
	store      *election.Store
	cfg        cliparse.Config
	controller *election.Controller
	registry   *candidate.Registry
	ledger     *ballot.Ledger
	engine     *tally.Engine
	hub        *tally.Hub

	elections  *ElectionHandler
	candidates *CandidateHandler
	voting     *VotingHandler
	results    *ResultsHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	controller := election.NewController(store, nil)
	registry := candidate.NewRegistry(store, nil)
	engine := tally.NewEngine(store, nil)
	hub := tally.NewHub(engine, nil, cfg.TallyPollInterval)
	ledger := ballot.NewLedger(store, nil, hub)

	return &testEnv{
		store:      store,
		cfg:        cfg,
		controller: controller,
		registry:   registry,
		ledger:     ledger,
		engine:     engine,
		hub:        hub,
		elections:  NewElectionHandler(controller, registry, cfg),
		candidates: NewCandidateHandler(registry),
		voting:     NewVotingHandler(ledger, cfg),
		results:    NewResultsHandler(controller, engine, hub, cfg),
	}
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.AdminKeyHeader: testutil.TestAdminKey}
}

func voterHeaders(voterID string) map[string]string {
	return map[string]string{middleware.VoterTokenHeader: testutil.VoterToken(voterID)}
}

// openElection creates an open election with two candidates per position
func (env *testEnv) openElection(t *testing.T) (string, testutil.Slate) {
	t.Helper()
	id := testutil.CreateTestElection(t, env.store.DB(), models.StatusOpen)
	return id, testutil.SeedFullSlate(t, env.store.DB(), id)
}

func selectionBody(sel map[models.Position]string) models.CastBallotRequest {
	req := models.CastBallotRequest{Selections: make(map[string]string, len(sel))}
	for pos, id := range sel {
		req.Selections[string(pos)] = id
	}
	return req
}

func (env *testEnv) castBallot(electionID, voterID string, sel map[models.Position]string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/elections/"+electionID+"/ballots", selectionBody(sel), voterHeaders(voterID))
	req.SetPathValue("id", electionID)
	w := httptest.NewRecorder()
	env.voting.CastBallot(w, req)
	return w
}

func withID(req *http.Request, id string) *http.Request {
	req.SetPathValue("id", id)
	return req
}
