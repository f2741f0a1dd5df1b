// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/models"
)

const (
	TestAdminKey       = "test-admin-key"
	TestIdentitySecret = "test-identity-secret"
)

// SetupTestDB creates a fresh SQLite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *election.Store {
	t.Helper()

	url := filepath.Join(t.TempDir(), "clubvote_test.db")
	conn, dialect, err := db.Open("sqlite", url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, dialect); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return election.NewStore(conn, dialect)
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = "file::memory:"
	cfg.AdminKey = TestAdminKey
	cfg.IdentitySecret = TestIdentitySecret
	cfg.IPHashSalt = "test-ip-salt"
	return cfg
}

// VoterToken returns a signed voter token for voterID
func VoterToken(voterID string) string {
	return auth.SignVoterID(voterID, TestIdentitySecret)
}

// CreateTestElection inserts an election directly in the given status and
// returns its ID. Bypasses the lifecycle guards.
func CreateTestElection(t *testing.T, conn *sql.DB, status models.Status) string {
	t.Helper()

	id := auth.NewID()
	now := time.Now().UTC()

	var openedAt, closedAt *time.Time
	if status == models.StatusOpen || status == models.StatusClosed {
		openedAt = &now
	}
	if status == models.StatusClosed {
		closedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO election (id, title, description, status, opened_at, closed_at, created_at, updated_at)
		VALUES ($1, 'Test Election', 'A test election', $2, $3, $4, $5, $6)
	`, id, string(status), openedAt, closedAt, now, now)
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}

	return id
}

// AddTestCandidate adds a candidate for a position and returns its ID
func AddTestCandidate(t *testing.T, conn *sql.DB, electionID string, pos models.Position, name string) string {
	t.Helper()

	id := auth.NewID()
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO candidate (id, election_id, full_name, position, department, batch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'Computer Science', '2025', $5, $6)
	`, id, electionID, name, string(pos), now, now)
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return id
}

// Slate maps each position to the candidates running for it
type Slate map[models.Position][]string

// SeedFullSlate adds two candidates for every position
func SeedFullSlate(t *testing.T, conn *sql.DB, electionID string) Slate {
	t.Helper()

	slate := make(Slate)
	for _, pos := range models.AllPositions() {
		for _, suffix := range []string{"A", "B"} {
			id := AddTestCandidate(t, conn, electionID, pos, pos.Title()+" Candidate "+suffix)
			slate[pos] = append(slate[pos], id)
		}
	}
	return slate
}

// Pick builds a complete selection using the i-th candidate of every position
func (s Slate) Pick(i int) map[models.Position]string {
	sel := make(map[models.Position]string, len(s))
	for pos, ids := range s {
		sel[pos] = ids[i]
	}
	return sel
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
