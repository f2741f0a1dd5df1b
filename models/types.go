package models

import "time"

// Election status values
type Status string

const (
	StatusDraft  Status = "draft"
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ParseStatus converts a wire value to a Status
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDraft, StatusOpen, StatusClosed:
		return Status(s), true
	}
	return "", false
}

// Request types

type CreateElectionRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Nil fields are left unchanged
type UpdateElectionRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

type TransitionRequest struct {
	Target string `json:"target"`
	Reopen bool   `json:"reopen"`
}

type ResultsPublicRequest struct {
	ResultsPublic bool `json:"results_public"`
}

type CandidateRequest struct {
	FullName   string  `json:"full_name"`
	Position   string  `json:"position"`
	Department string  `json:"department"`
	Batch      string  `json:"batch"`
	Manifesto  *string `json:"manifesto,omitempty"`
	PhotoRef   *string `json:"photo_ref,omitempty"`
}

// position -> candidate_id
type CastBallotRequest struct {
	Selections map[string]string `json:"selections"`
}

// Response types

type CastBallotResponse struct {
	BallotID string `json:"ballot_id"`
	Message  string `json:"message"`
}

type HasVotedResponse struct {
	ElectionID string  `json:"election_id"`
	HasVoted   bool    `json:"has_voted"`
	Ballot     *Ballot `json:"ballot,omitempty"`
}

type ElectionWithCandidates struct {
	Election   Election    `json:"election"`
	Candidates []Candidate `json:"candidates"`
}

// Domain types

type Election struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Status            Status     `json:"status"`
	StartsAt          *time.Time `json:"starts_at,omitempty"`
	EndsAt            *time.Time `json:"ends_at,omitempty"`
	ResultsPublic     bool       `json:"results_public"`
	SlateGuardRelaxed bool       `json:"slate_guard_relaxed"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	ReopenCount       int        `json:"reopen_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Candidate struct {
	ID         string    `json:"id"`
	ElectionID string    `json:"election_id"`
	FullName   string    `json:"full_name"`
	Position   Position  `json:"position"`
	Department string    `json:"department"`
	Batch      string    `json:"batch"`
	Manifesto  *string   `json:"manifesto,omitempty"`
	PhotoRef   *string   `json:"photo_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Ballot struct {
	ID         string              `json:"id"`
	ElectionID string              `json:"election_id"`
	VoterID    string              `json:"-"` // audit only
	Selections map[Position]string `json:"selections"`
	CastAt     time.Time           `json:"cast_at"`
	IPHash     *string             `json:"-"`
	UserAgent  *string             `json:"-"`
}

// Tally types

type TallyEntry struct {
	CandidateID string `json:"candidate_id"`
	FullName    string `json:"full_name"`
	Count       int64  `json:"count"`
	Rank        int    `json:"rank"` // 1-indexed
}

// Tally is derived from committed ballots and never stored
type Tally struct {
	ElectionID   string                    `json:"election_id"`
	TotalBallots int64                     `json:"total_ballots"`
	ComputedAt   time.Time                 `json:"computed_at"`
	Positions    map[Position][]TallyEntry `json:"positions"`
}

// Error response

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Invariant string `json:"invariant,omitempty"`
}
