// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
)

type CandidateHandler struct {
	registry *candidate.Registry
}

func NewCandidateHandler(registry *candidate.Registry) *CandidateHandler {
	return &CandidateHandler{registry: registry}
}

func candidateInput(req models.CandidateRequest) candidate.Input {
	return candidate.Input{
		FullName:   req.FullName,
		Position:   req.Position,
		Department: req.Department,
		Batch:      req.Batch,
		Manifesto:  req.Manifesto,
		PhotoRef:   req.PhotoRef,
	}
}

// AddCandidate handles POST /elections/{id}/candidates
func (h *CandidateHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	c, err := h.registry.AddCandidate(r.Context(), r.PathValue("id"), candidateInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, c)
}

// UpdateCandidate handles PUT /candidates/{id}
func (h *CandidateHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	c, err := h.registry.UpdateCandidate(r.Context(), r.PathValue("id"), candidateInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, c)
}

// RemoveCandidate handles DELETE /candidates/{id}
func (h *CandidateHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.RemoveCandidate(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCandidates handles GET /elections/{id}/candidates?position=
func (h *CandidateHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	var position *models.Position
	if raw := r.URL.Query().Get("position"); raw != "" {
		p, err := models.ParsePosition(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "position must be one of: president, vice_president, secretary")
			return
		}
		position = &p
	}

	candidates, err := h.registry.ListCandidates(r.Context(), r.PathValue("id"), position)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, candidates)
}
