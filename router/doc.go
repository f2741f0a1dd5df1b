// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the club election API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Services{...}, cfg)

# Endpoints

Operations:

	GET /health
	GET /metrics

Election management (admin, requires X-Admin-Key):

	POST   /elections                      - Create draft election
	GET    /elections                      - List elections
	GET    /elections/{id}/admin           - Election with candidates, any state
	PATCH  /elections/{id}                 - Edit details
	DELETE /elections/{id}                 - Delete a draft
	POST   /elections/{id}/transition      - Open, close or reopen
	PUT    /elections/{id}/results-public  - Publish or hide results
	GET    /elections/{id}/admin/tally     - Tally regardless of visibility
	POST   /elections/{id}/candidates      - Register candidate
	PUT    /candidates/{id}                - Edit candidate
	DELETE /candidates/{id}                - Remove candidate

Public:

	GET /elections/active             - The open election
	GET /elections/{id}               - Election and candidates (not drafts)
	GET /elections/{id}/candidates    - Candidates, ?position= filter

Voting (requires X-Voter-Token):

	POST /elections/{id}/ballots     - Cast ballot
	GET  /elections/{id}/ballots/me  - Has the caller voted

Results (public once published):

	GET /elections/{id}/results       - Tally snapshot
	GET /elections/{id}/results/live  - Websocket tally stream
*/
package router
