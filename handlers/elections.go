// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
)

type ElectionHandler struct {
	controller *election.Controller
	registry   *candidate.Registry
	cfg        cliparse.Config
}

func NewElectionHandler(controller *election.Controller, registry *candidate.Registry, cfg cliparse.Config) *ElectionHandler {
	return &ElectionHandler{controller: controller, registry: registry, cfg: cfg}
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.controller.CreateElection(r.Context(), req.Title, req.Description, req.StartsAt, req.EndsAt)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, e)
}

// ListElections handles GET /elections
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.controller.ListElections(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, elections)
}

// GetElectionAdmin handles GET /elections/{id}/admin
// Returns the election in any state with its candidates
func (h *ElectionHandler) GetElectionAdmin(w http.ResponseWriter, r *http.Request) {
	h.writeElection(w, r, r.PathValue("id"), true)
}

// GetElection handles GET /elections/{id}
// Drafts are not visible to the public
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	h.writeElection(w, r, r.PathValue("id"), false)
}

// GetActiveElection handles GET /elections/active
func (h *ElectionHandler) GetActiveElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.controller.ActiveElection(r.Context())
	if err != nil {
		middleware.WriteErrorMessage(w, err, "No election is currently open")
		return
	}
	h.writeElection(w, r, e.ID, false)
}

func (h *ElectionHandler) writeElection(w http.ResponseWriter, r *http.Request, id string, admin bool) {
	e, err := h.controller.GetElection(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !admin && e.Status == models.StatusDraft {
		middleware.WriteError(w, models.Reject(models.KindElectionNotFound, "election %s does not exist", id))
		return
	}

	candidates, err := h.registry.ListCandidates(r.Context(), id, nil)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ElectionWithCandidates{
		Election:   *e,
		Candidates: candidates,
	})
}

// UpdateElection handles PATCH /elections/{id}
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.controller.UpdateElection(r.Context(), r.PathValue("id"), election.ElectionUpdate{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /elections/{id}
func (h *ElectionHandler) DeleteElection(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.DeleteElection(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transition handles POST /elections/{id}/transition
// The club settings come from configuration, never from the request
func (h *ElectionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req models.TransitionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	target, ok := models.ParseStatus(req.Target)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "target must be one of: draft, open, closed")
		return
	}

	e, err := h.controller.Transition(r.Context(), r.PathValue("id"), target, election.TransitionOptions{
		Settings: h.cfg.Settings,
		Reopen:   req.Reopen,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, e)
}

// SetResultsPublic handles PUT /elections/{id}/results-public
func (h *ElectionHandler) SetResultsPublic(w http.ResponseWriter, r *http.Request) {
	var req models.ResultsPublicRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.controller.SetResultsPublic(r.Context(), r.PathValue("id"), req.ResultsPublic)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, e)
}
