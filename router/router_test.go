// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/tally"
	"github.com/danielhkuo/clubvote/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *election.Store) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := tally.NewEngine(store, m)
	hub := tally.NewHub(engine, m, cfg.TallyPollInterval)

	svc := Services{
		Controller: election.NewController(store, m),
		Registry:   candidate.NewRegistry(store, m),
		Ledger:     ballot.NewLedger(store, m, hub),
		Engine:     engine,
		Hub:        hub,
		Gatherer:   reg,
	}
	return NewRouter(svc, cfg), store
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "clubvote API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, store := newTestRouter(t)
	id := testutil.CreateTestElection(t, store.DB(), models.StatusOpen)
	slate := testutil.SeedFullSlate(t, store.DB(), id)

	// One ballot so the counter has a sample
	body := models.CastBallotRequest{Selections: map[string]string{}}
	for pos, candidateID := range slate.Pick(0) {
		body.Selections[string(pos)] = candidateID
	}
	req := testutil.MakeRequest("POST", "/elections/"+id+"/ballots", body,
		map[string]string{middleware.VoterTokenHeader: testutil.VoterToken("voter-1")})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected ballot to be accepted, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "clubvote_ballots_cast_total 1") {
		t.Errorf("Expected ballots_cast_total sample in metrics output")
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	// Routes respond with whatever the handler decides; only 405 means unrouted
	testCases := []struct {
		method string
		path   string
	}{
		// Health, metrics and root
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/"},

		// Election management
		{"POST", "/elections"},
		{"GET", "/elections"},
		{"GET", "/elections/test-id/admin"},
		{"PATCH", "/elections/test-id"},
		{"DELETE", "/elections/test-id"},
		{"POST", "/elections/test-id/transition"},
		{"PUT", "/elections/test-id/results-public"},
		{"GET", "/elections/test-id/admin/tally"},

		// Candidates
		{"POST", "/elections/test-id/candidates"},
		{"GET", "/elections/test-id/candidates"},
		{"PUT", "/candidates/test-id"},
		{"DELETE", "/candidates/test-id"},

		// Public views and voting
		{"GET", "/elections/active"},
		{"GET", "/elections/test-id"},
		{"POST", "/elections/test-id/ballots"},
		{"GET", "/elections/test-id/ballots/me"},
		{"GET", "/elections/test-id/results"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/elections"},
		{"GET", "/elections"},
		{"POST", "/elections/test-id/transition"},
		{"DELETE", "/candidates/test-id"},
		{"GET", "/elections/test-id/admin/tally"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set(middleware.AdminKeyHeader, "wrong-key")
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	// Test that unsupported methods on defined routes return 405
	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},                    // Only GET is defined
		{"DELETE", "/elections/test-id/admin"}, // Only GET is defined
		{"PUT", "/elections/test-id/ballots"},  // Only POST is defined
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux, store := newTestRouter(t)
	electionID := testutil.CreateTestElection(t, store.DB(), models.StatusDraft)

	t.Run("election ID extraction", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/elections/"+electionID+"/admin", nil)
		req.Header.Set(middleware.AdminKeyHeader, testutil.TestAdminKey)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 with valid admin key, got %d. Body: %s", w.Code, w.Body.String())
		}
	})

	t.Run("active takes precedence over id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/elections/active", nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		// No election is open; an id lookup would have said "does not exist"
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "No election is currently open") {
			t.Errorf("Expected active election message, got %s", w.Body.String())
		}
	})
}

func TestShutdownHookRegistered(t *testing.T) {
	store := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	engine := tally.NewEngine(store, nil)
	hub := tally.NewHub(engine, nil, cfg.TallyPollInterval)

	var hooks []func()
	NewRouter(Services{
		Controller: election.NewController(store, nil),
		Registry:   candidate.NewRegistry(store, nil),
		Ledger:     ballot.NewLedger(store, nil, hub),
		Engine:     engine,
		Hub:        hub,
		OnShutdown: func(f func()) { hooks = append(hooks, f) },
	}, cfg)

	if len(hooks) != 1 {
		t.Fatalf("Expected 1 shutdown hook, got %d", len(hooks))
	}
	// Closing twice is harmless
	hooks[0]()
	hooks[0]()
}
