// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain and error types shared by
every package of the election service.

# Request Types

Types for parsing incoming JSON:

  - CreateElectionRequest: title, description, starts_at, ends_at
  - UpdateElectionRequest: partial update of the same fields
  - TransitionRequest: target, reopen
  - ResultsPublicRequest: results_public
  - CandidateRequest: full_name, position, department, batch, manifesto, photo_ref
  - CastBallotRequest: selections (position -> candidate_id)

# Domain Types

  - Election: lifecycle state, schedule and results flag
  - Candidate: bound to one election and one Position
  - Ballot: one voter's complete, immutable selection set
  - Tally: per-position counts derived from committed ballots

# Positions

Position is a closed set:

	PositionPresident     = "president"
	PositionVicePresident = "vice_president"
	PositionSecretary     = "secretary"

Every ballot must fill every position returned by AllPositions.

# Errors

Expected outcomes are *Rejection values matched with errors.Is against the
sentinels (ErrDuplicateBallot, ErrElectionNotOpen, ...). Store failures are
*InfrastructureFailure values matching ErrInfrastructure.

	if errors.Is(err, models.ErrDuplicateBallot) {
		// show "you already voted"
	}

# Presentation

PresentTally converts a Tally into a TallyView with percentages rounded to
one decimal. Stored and computed counts are always exact integers.
*/
package models
