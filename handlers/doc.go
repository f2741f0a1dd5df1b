// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the election API.

# Handler Types

  - ElectionHandler: create, edit, delete and transition elections
  - CandidateHandler: candidate registry
  - VotingHandler: ballot casting and "have I voted"
  - ResultsHandler: tally snapshots and the live websocket stream

Handlers wrap domain components and translate their errors with
middleware.WriteError. Rejections keep their kind as the "code" field:

	409 duplicate_ballot    "You have already voted in this election"
	409 election_not_open   "Voting has ended" / "Voting has not started"
	422 incomplete_ballot
	503 infrastructure_failure

# Live Results

GET /elections/{id}/results/live upgrades to a websocket and pushes a
presented tally whenever a ballot commits. Clients only listen.
*/
package handlers
