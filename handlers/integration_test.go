// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
	"github.com/danielhkuo/clubvote/testutil"
)

// TestFullElectionWorkflow tests the complete end-to-end workflow:
// 1. Create election
// 2. Register candidates for every position
// 3. Open election
// 4. Voters cast ballots
// 5. A voter tries to vote twice
// 6. Close election
// 7. Late ballot is refused
// 8. Publish and verify results
func TestFullElectionWorkflow(t *testing.T) {
	env := newTestEnv(t)

	// Step 1: Create an election
	body, _ := json.Marshal(models.CreateElectionRequest{
		Title:       "Student Council 2025",
		Description: "Integration test election",
	})
	req := httptest.NewRequest("POST", "/elections", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AdminKeyHeader, testutil.TestAdminKey)
	w := httptest.NewRecorder()
	env.elections.CreateElection(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Step 1 - Create election failed: %d - %s", w.Code, w.Body.String())
	}
	var created models.Election
	json.NewDecoder(w.Body).Decode(&created)
	electionID := created.ID
	t.Logf("Step 1 - Created election: %s", electionID)

	// Step 2: Two candidates per position
	names := map[models.Position][]string{
		models.PositionPresident:     {"Ada", "Grace"},
		models.PositionVicePresident: {"Linus", "Ken"},
		models.PositionSecretary:     {"Barbara", "Edsger"},
	}
	candidateIDs := make(map[string]string)
	for _, pos := range models.AllPositions() {
		for _, name := range names[pos] {
			body, _ := json.Marshal(models.CandidateRequest{FullName: name, Position: string(pos), Department: "CS", Batch: "2025"})
			req := httptest.NewRequest("POST", "/elections/"+electionID+"/candidates", bytes.NewReader(body))
			req.SetPathValue("id", electionID)
			req.Header.Set(middleware.AdminKeyHeader, testutil.TestAdminKey)
			w := httptest.NewRecorder()
			env.candidates.AddCandidate(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("Step 2 - Add candidate %q failed: %d - %s", name, w.Code, w.Body.String())
			}
			var c models.Candidate
			json.NewDecoder(w.Body).Decode(&c)
			candidateIDs[name] = c.ID
		}
	}
	t.Logf("Step 2 - Registered %d candidates", len(candidateIDs))

	transition := func(step int, target string) {
		t.Helper()
		body, _ := json.Marshal(models.TransitionRequest{Target: target})
		req := httptest.NewRequest("POST", "/elections/"+electionID+"/transition", bytes.NewReader(body))
		req.SetPathValue("id", electionID)
		req.Header.Set(middleware.AdminKeyHeader, testutil.TestAdminKey)
		w := httptest.NewRecorder()
		env.elections.Transition(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Step %d - Transition to %s failed: %d - %s", step, target, w.Code, w.Body.String())
		}
	}

	// Step 3: Open the election
	transition(3, "open")
	t.Log("Step 3 - Election opened")

	// Step 4: Voters cast ballots
	ballots := map[string][]string{
		"alice": {"Ada", "Linus", "Barbara"},
		"bob":   {"Ada", "Ken", "Barbara"},
		"carol": {"Grace", "Linus", "Edsger"},
		"dave":  {"Ada", "Linus", "Edsger"},
	}
	vote := func(voter string, picks []string) *httptest.ResponseRecorder {
		sel := make(map[models.Position]string, len(picks))
		for i, pos := range models.AllPositions() {
			sel[pos] = candidateIDs[picks[i]]
		}
		return env.castBallot(electionID, voter, sel)
	}
	for voter, picks := range ballots {
		w := vote(voter, picks)
		if w.Code != http.StatusCreated {
			t.Fatalf("Step 4 - Ballot for %s failed: %d - %s", voter, w.Code, w.Body.String())
		}
	}
	t.Logf("Step 4 - Cast %d ballots", len(ballots))

	// Step 5: Second ballot from the same voter is refused
	w = vote("alice", []string{"Grace", "Ken", "Edsger"})
	if w.Code != http.StatusConflict {
		t.Fatalf("Step 5 - Expected duplicate ballot to be refused, got %d", w.Code)
	}
	t.Log("Step 5 - Duplicate ballot refused")

	// Step 6: Close the election
	transition(6, "closed")
	t.Log("Step 6 - Election closed")

	// Step 7: Late ballot
	w = vote("erin", []string{"Grace", "Ken", "Edsger"})
	if w.Code != http.StatusConflict {
		t.Fatalf("Step 7 - Expected late ballot to be refused, got %d", w.Code)
	}
	var errResp models.ErrorResponse
	json.NewDecoder(w.Body).Decode(&errResp)
	if errResp.Message != "Voting has ended" {
		t.Errorf("Step 7 - Unexpected message %q", errResp.Message)
	}

	// Step 8: Publish and read results
	body, _ = json.Marshal(models.ResultsPublicRequest{ResultsPublic: true})
	req = httptest.NewRequest("PUT", "/elections/"+electionID+"/results-public", bytes.NewReader(body))
	req.SetPathValue("id", electionID)
	req.Header.Set(middleware.AdminKeyHeader, testutil.TestAdminKey)
	w = httptest.NewRecorder()
	env.elections.SetResultsPublic(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Step 8 - Publish results failed: %d - %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/elections/"+electionID+"/results", nil)
	req.SetPathValue("id", electionID)
	w = httptest.NewRecorder()
	env.results.GetResults(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Step 8 - Get results failed: %d - %s", w.Code, w.Body.String())
	}

	var view models.TallyView
	json.NewDecoder(w.Body).Decode(&view)

	if view.TotalBallots != 4 {
		t.Errorf("Expected 4 ballots, got %d", view.TotalBallots)
	}
	if view.Provisional {
		t.Error("Expected final results")
	}

	winners := map[models.Position]string{
		models.PositionPresident:     "Ada",
		models.PositionVicePresident: "Linus",
	}
	for _, p := range view.Positions {
		if len(p.Entries) != 2 {
			t.Errorf("Expected 2 entries for %s, got %d", p.Position, len(p.Entries))
			continue
		}
		if want, ok := winners[p.Position]; ok && p.Entries[0].FullName != want {
			t.Errorf("Expected %s to win %s, got %s", want, p.Position, p.Entries[0].FullName)
		}
		if p.Position == models.PositionSecretary {
			// 2-2 tie keeps both in rank order
			if p.Entries[0].Count != 2 || p.Entries[1].Count != 2 {
				t.Errorf("Expected a 2-2 tie for secretary, got %d-%d", p.Entries[0].Count, p.Entries[1].Count)
			}
		}
	}

	t.Logf("Step 8 - Results: %d ballots", view.TotalBallots)
}
