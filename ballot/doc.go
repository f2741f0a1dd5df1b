// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ballot records ballots.

A voter casts exactly one ballot per election, choosing one candidate for
every position:

	ledger := ballot.NewLedger(store, m, hub)
	id, err := ledger.CastBallot(ctx, ballot.Request{
		ElectionID: electionID,
		VoterID:    voterID,
		Selections: map[models.Position]string{...},
	})

# Guarantees

CastBallot runs in one transaction that locks the election's status, so a
concurrent close either happens before the ballot (ElectionNotOpen) or after
it commits. The UNIQUE(election_id, voter_id) constraint decides concurrent
casts by the same voter; exactly one wins and the others get
DuplicateBallot. A ballot is never updated once stored.

# Rejections

  - ElectionNotFound, ElectionNotOpen (Status says draft or closed)
  - IncompleteBallot (Positions lists the missing slots)
  - InvalidSelection (unknown position or a candidate from another slot)
  - DuplicateBallot
  - InvalidInput (no voter id)

Anything else is an InfrastructureFailure and may be retried.
*/
package ballot
