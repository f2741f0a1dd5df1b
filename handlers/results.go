// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/tally"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ResultsHandler struct {
	controller *election.Controller
	engine     *tally.Engine
	hub        *tally.Hub
	cfg        cliparse.Config

	closing   chan struct{}
	closeOnce sync.Once
}

func NewResultsHandler(controller *election.Controller, engine *tally.Engine, hub *tally.Hub, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{
		controller: controller,
		engine:     engine,
		hub:        hub,
		cfg:        cfg,
		closing:    make(chan struct{}),
	}
}

// CloseStreams sends a going-away close frame on every open live stream and
// ends them. Register it with http.Server.RegisterOnShutdown, since Shutdown
// does not wait for hijacked connections.
func (h *ResultsHandler) CloseStreams() {
	h.closeOnce.Do(func() {
		slog.Info("closing live results streams")
		close(h.closing)
	})
}

// visibleElection loads the election and checks that the caller may see its
// results. It writes the error response and returns nil otherwise.
func (h *ResultsHandler) visibleElection(w http.ResponseWriter, r *http.Request) *models.Election {
	e, err := h.controller.GetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return nil
	}
	if !e.ResultsPublic && !middleware.IsAdmin(r, h.cfg.AdminKey) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are not public")
		return nil
	}
	return e
}

// GetResults handles GET /elections/{id}/results
// Returns 403 unless results have been made public
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	e := h.visibleElection(w, r)
	if e == nil {
		return
	}
	h.writeTally(w, r, e)
}

// GetAdminTally handles GET /elections/{id}/admin/tally
func (h *ResultsHandler) GetAdminTally(w http.ResponseWriter, r *http.Request) {
	e, err := h.controller.GetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeTally(w, r, e)
}

func (h *ResultsHandler) writeTally(w http.ResponseWriter, r *http.Request, e *models.Election) {
	t, err := h.engine.Tally(r.Context(), e.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.PresentTally(t, e))
}

// LiveResults handles GET /elections/{id}/results/live
// Upgrades to a websocket and streams a presented tally after every change.
// A public stream is closed once the results are hidden again.
func (h *ResultsHandler) LiveResults(w http.ResponseWriter, r *http.Request) {
	e := h.visibleElection(w, r)
	if e == nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := h.hub.Subscribe(ctx, e.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "election_id", e.ID, "error", err)
		return
	}

	s := &liveStream{
		conn:       conn,
		updates:    updates,
		closing:    h.closing,
		controller: h.controller,
		electionID: e.ID,
		admin:      middleware.IsAdmin(r, h.cfg.AdminKey),
		election:   e,
	}
	slog.Info("live results stream opened", "election_id", e.ID, "remote", r.RemoteAddr)

	go s.readPump(cancel)
	s.writePump(ctx)

	slog.Info("live results stream closed", "election_id", e.ID, "remote", r.RemoteAddr)
}
