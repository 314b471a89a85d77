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

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/opeoladettp/yodeco-backend-sub000/auth"
	"github.com/opeoladettp/yodeco-backend-sub000/cliparse"
	"github.com/opeoladettp/yodeco-backend-sub000/db"
)

// SetupTestDB creates a fresh SQLite database file with the full schema.
// It is removed with the test's temp dir.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "votes.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := db.Open("sqlite", url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// SetupRedis starts an in-memory Redis server and a client for it.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

// GetTestConfig returns a configuration with small delays so retry paths
// finish quickly.
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = "sqlite-temp"
	cfg.AdminKeySalt = "test-admin-salt"
	cfg.IPHashSalt = "test-ip-salt"
	cfg.LockRetryDelay = time.Millisecond
	cfg.LockMaxAttempts = 500
	cfg.SubmitBaseDelay = time.Millisecond
	cfg.SubmitMaxDelay = 5 * time.Millisecond
	cfg.BreakerCooldown = time.Hour
	cfg.CallTimeout = 5 * time.Second
	cfg.UpdateWorkers = 2
	cfg.UpdateQueueSize = 64
	cfg.LocalCleanupInterval = 0
	return cfg
}

// AwardWindow configures the voting window of a test award. Nil bounds
// leave that side open.
type AwardWindow struct {
	Start  *time.Time
	End    *time.Time
	Closed bool // inactive award
}

// CreateTestAward inserts an award and returns its ID.
func CreateTestAward(t *testing.T, conn *sql.DB, name string, window AwardWindow) string {
	t.Helper()

	awardID, _ := auth.GenerateID(16)
	var start, end sql.NullTime
	if window.Start != nil {
		start = sql.NullTime{Time: window.Start.UTC(), Valid: true}
	}
	if window.End != nil {
		end = sql.NullTime{Time: window.End.UTC(), Valid: true}
	}

	_, err := conn.Exec(`
		INSERT INTO award (id, name, description, active, voting_start, voting_end, created_at)
		VALUES ($1, $2, 'A test award', $3, $4, $5, $6)
	`, awardID, name, !window.Closed, start, end, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test award: %v", err)
	}

	return awardID
}

// AddTestNominee adds a nominee to an award and returns the nominee ID
func AddTestNominee(t *testing.T, conn *sql.DB, awardID, name string) string {
	t.Helper()

	nomineeID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO nominee (id, award_id, name)
		VALUES ($1, $2, $3)
	`, nomineeID, awardID, name)
	if err != nil {
		t.Fatalf("Failed to create test nominee: %v", err)
	}

	return nomineeID
}

// CastTestVotes records n votes for a nominee from generated voters,
// bypassing the submission service.
func CastTestVotes(t *testing.T, conn *sql.DB, awardID, nomineeID string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		voteID, _ := auth.GenerateID(16)
		voterID, _ := auth.GenerateID(8)
		_, err := conn.Exec(`
			INSERT INTO vote (id, voter_id, award_id, nominee_id, verified, created_at)
			VALUES ($1, $2, $3, $4, TRUE, $5)
		`, voteID, "voter-"+voterID, awardID, nomineeID, time.Now().UTC())
		if err != nil {
			t.Fatalf("Failed to create test vote: %v", err)
		}
	}
}

// AdminHeaders returns valid admin credentials for adminID.
func AdminHeaders(cfg cliparse.Config, adminID string) map[string]string {
	return map[string]string{
		"X-Admin-ID":  adminID,
		"X-Admin-Key": auth.AdminKey(adminID, cfg.AdminKeySalt),
	}
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
