// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
)

const maxUserAgentLen = 512

type VotingHandler struct {
	ledger *ballot.Ledger
	cfg    cliparse.Config
}

func NewVotingHandler(ledger *ballot.Ledger, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{ledger: ledger, cfg: cfg}
}

// voterID verifies the X-Voter-Token header and returns the voter identity.
// It writes a 401 and returns false when the token is missing or invalid.
func (h *VotingHandler) voterID(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get(middleware.VoterTokenHeader)
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return "", false
	}
	voterID, err := auth.VerifyVoterToken(token, h.cfg.IdentitySecret)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token")
		return "", false
	}
	return voterID, true
}

// CastBallot handles POST /elections/{id}/ballots
func (h *VotingHandler) CastBallot(w http.ResponseWriter, r *http.Request) {
	voterID, ok := h.voterID(w, r)
	if !ok {
		return
	}

	var req models.CastBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	selections := make(map[models.Position]string, len(req.Selections))
	for key, candidateID := range req.Selections {
		pos, err := models.ParsePosition(key)
		if err != nil {
			middleware.WriteError(w, models.Reject(models.KindInvalidSelection, "unknown position %q", key))
			return
		}
		if _, seen := selections[pos]; seen {
			middleware.WriteError(w, models.Reject(models.KindInvalidSelection, "position %s selected more than once", pos))
			return
		}
		selections[pos] = candidateID
	}

	ballotReq := ballot.Request{
		ElectionID: r.PathValue("id"),
		VoterID:    voterID,
		Selections: selections,
	}
	if h.cfg.IPHashSalt != "" {
		ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)
		ballotReq.IPHash = &ipHash
	}
	if ua := r.UserAgent(); ua != "" {
		if len(ua) > maxUserAgentLen {
			ua = ua[:maxUserAgentLen]
		}
		ballotReq.UserAgent = &ua
	}

	ballotID, err := h.ledger.CastBallot(r.Context(), ballotReq)
	if err != nil {
		middleware.WriteErrorMessage(w, err, ballotMessage(err))
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastBallotResponse{
		BallotID: ballotID,
		Message:  "Your vote has been recorded",
	})
}

// ballotMessage returns the voter-facing text for a ballot rejection
func ballotMessage(err error) string {
	r, ok := models.AsRejection(err)
	if !ok {
		return ""
	}
	switch {
	case errors.Is(err, models.ErrDuplicateBallot):
		return "You have already voted in this election"
	case errors.Is(err, models.ErrElectionNotOpen):
		if r.Status == models.StatusClosed {
			return "Voting has ended"
		}
		return "Voting has not started"
	case errors.Is(err, models.ErrElectionNotFound):
		return "Election not found"
	}
	return ""
}

// GetMyBallot handles GET /elections/{id}/ballots/me
func (h *VotingHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	voterID, ok := h.voterID(w, r)
	if !ok {
		return
	}

	electionID := r.PathValue("id")
	voted, err := h.ledger.HasVoted(r.Context(), electionID, voterID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := models.HasVotedResponse{ElectionID: electionID, HasVoted: voted}
	if voted {
		resp.Ballot, err = h.ledger.VoterBallot(r.Context(), electionID, voterID)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
