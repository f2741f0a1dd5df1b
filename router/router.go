// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/handlers"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/tally"
)

// Services are the components the HTTP surface delegates to
type Services struct {
	Controller *election.Controller
	Registry   *candidate.Registry
	Ledger     *ballot.Ledger
	Engine     *tally.Engine
	Hub        *tally.Hub
	// Gatherer backs GET /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	// OnShutdown registers a hook run when the server shuts down, usually
	// http.Server.RegisterOnShutdown. Live result streams close through it.
	OnShutdown func(func())
}

func NewRouter(svc Services, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(svc.Controller, svc.Registry, cfg)
	candidateHandler := handlers.NewCandidateHandler(svc.Registry)
	votingHandler := handlers.NewVotingHandler(svc.Ledger, cfg)
	resultsHandler := handlers.NewResultsHandler(svc.Controller, svc.Engine, svc.Hub, cfg)
	if svc.OnShutdown != nil {
		svc.OnShutdown(resultsHandler.CloseStreams)
	}

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKey, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if svc.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{}))
	}

	// Election management (admin operations)
	mux.HandleFunc("POST /elections", admin(electionHandler.CreateElection))
	mux.HandleFunc("GET /elections", admin(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/{id}/admin", admin(electionHandler.GetElectionAdmin))
	mux.HandleFunc("PATCH /elections/{id}", admin(electionHandler.UpdateElection))
	mux.HandleFunc("DELETE /elections/{id}", admin(electionHandler.DeleteElection))
	mux.HandleFunc("POST /elections/{id}/transition", admin(electionHandler.Transition))
	mux.HandleFunc("PUT /elections/{id}/results-public", admin(electionHandler.SetResultsPublic))
	mux.HandleFunc("GET /elections/{id}/admin/tally", admin(resultsHandler.GetAdminTally))

	// Candidate registry (admin operations)
	mux.HandleFunc("POST /elections/{id}/candidates", admin(candidateHandler.AddCandidate))
	mux.HandleFunc("PUT /candidates/{id}", admin(candidateHandler.UpdateCandidate))
	mux.HandleFunc("DELETE /candidates/{id}", admin(candidateHandler.RemoveCandidate))

	// Public election views
	mux.HandleFunc("GET /elections/active", middleware.WithLogging(electionHandler.GetActiveElection))
	mux.HandleFunc("GET /elections/{id}", middleware.WithLogging(electionHandler.GetElection))
	mux.HandleFunc("GET /elections/{id}/candidates", middleware.WithLogging(candidateHandler.ListCandidates))

	// Voting operations (voter token)
	mux.HandleFunc("POST /elections/{id}/ballots", middleware.WithLogging(votingHandler.CastBallot))
	mux.HandleFunc("GET /elections/{id}/ballots/me", middleware.WithLogging(votingHandler.GetMyBallot))

	// Results (public once published, admin always)
	mux.HandleFunc("GET /elections/{id}/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /elections/{id}/results/live", middleware.WithLogging(resultsHandler.LiveResults))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clubvote API v1"))
	})

	return mux
}
