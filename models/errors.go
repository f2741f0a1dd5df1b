// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
)

// ErrorKind names an expected domain outcome
type ErrorKind string

const (
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindElectionNotEditable ErrorKind = "election_not_editable"
	KindElectionNotOpen     ErrorKind = "election_not_open"
	KindDuplicateBallot     ErrorKind = "duplicate_ballot"
	KindInvalidSelection    ErrorKind = "invalid_selection"
	KindIncompleteBallot    ErrorKind = "incomplete_ballot"
	KindCandidateHasVotes   ErrorKind = "candidate_has_votes"
	KindElectionNotFound    ErrorKind = "election_not_found"
	KindCandidateNotFound   ErrorKind = "candidate_not_found"
	KindInvalidInput        ErrorKind = "invalid_input"
)

// Invariant names reported with InvalidTransition rejections
const (
	InvariantSingleOpenElection = "single_open_election"
	InvariantFullSlate          = "full_slate"
	InvariantVotingDisabled     = "voting_disabled"
	InvariantRegistrationOpen   = "registration_open"
	InvariantReopenNotRequested = "reopen_not_requested"
	InvariantStateMachine       = "state_machine"
)

// Rejection is a typed, expected refusal of a request. It is surfaced to the
// caller verbatim and is never an incident.
type Rejection struct {
	Kind      ErrorKind
	Invariant string
	Message   string

	// Status is the election status at the time of an ElectionNotOpen rejection
	Status Status
	// Positions lists missing or offending slots for ballot rejections
	Positions []Position
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Message
}

// Is matches any Rejection of the same kind, so errors.Is(err, ErrDuplicateBallot) works
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind
}

var (
	ErrInvalidTransition   = &Rejection{Kind: KindInvalidTransition}
	ErrElectionNotEditable = &Rejection{Kind: KindElectionNotEditable}
	ErrElectionNotOpen     = &Rejection{Kind: KindElectionNotOpen}
	ErrDuplicateBallot     = &Rejection{Kind: KindDuplicateBallot}
	ErrInvalidSelection    = &Rejection{Kind: KindInvalidSelection}
	ErrIncompleteBallot    = &Rejection{Kind: KindIncompleteBallot}
	ErrCandidateHasVotes   = &Rejection{Kind: KindCandidateHasVotes}
	ErrElectionNotFound    = &Rejection{Kind: KindElectionNotFound}
	ErrCandidateNotFound   = &Rejection{Kind: KindCandidateNotFound}
	ErrInvalidInput        = &Rejection{Kind: KindInvalidInput}
)

// Reject builds a Rejection of the given kind
func Reject(kind ErrorKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RejectTransition builds an InvalidTransition naming the violated invariant
func RejectTransition(invariant, format string, args ...any) *Rejection {
	return &Rejection{
		Kind:      KindInvalidTransition,
		Invariant: invariant,
		Message:   fmt.Sprintf(format, args...),
	}
}

// AsRejection extracts a Rejection from an error chain
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ErrInfrastructure matches every InfrastructureFailure
var ErrInfrastructure = errors.New("infrastructure failure")

// InfrastructureFailure wraps a store error. Unlike a Rejection it is
// transient and may be retried by the caller.
type InfrastructureFailure struct {
	Op  string
	Err error
}

func (f *InfrastructureFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *InfrastructureFailure) Unwrap() error {
	return f.Err
}

func (f *InfrastructureFailure) Is(target error) bool {
	return target == ErrInfrastructure
}

// Infra wraps err as an InfrastructureFailure, passing Rejections and nil through
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsRejection(err); ok {
		return err
	}
	var f *InfrastructureFailure
	if errors.As(err, &f) {
		return err
	}
	return &InfrastructureFailure{Op: op, Err: err}
}
