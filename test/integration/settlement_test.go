// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Integration tests for the gateway's usage settlement path. They run
// against a live gateway and its Postgres database:
//
//	TEST_DATABASE_URL - required, the gateway's DATABASE_URL
//	TEST_GATEWAY_URL  - gateway base URL (default: http://localhost:8080)
//	TEST_API_KEY      - credential to meter (default: the demo account,
//	                    which requires SEED_DEMO_ACCOUNT=true on the gateway)
//
// Without TEST_DATABASE_URL the tests skip.
package integration

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	DatabaseURL string
	GatewayURL  string
	APIKey      string
}

// LoadTestConfig loads test configuration from environment
func LoadTestConfig() (*TestConfig, error) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("TEST_DATABASE_URL not set")
	}

	gatewayURL := os.Getenv("TEST_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:8080" // Default for local testing
	}

	apiKey := os.Getenv("TEST_API_KEY")
	if apiKey == "" {
		apiKey = "demo_fe01ce2a7fbac8fa"
	}

	return &TestConfig{
		DatabaseURL: dbURL,
		GatewayURL:  gatewayURL,
		APIKey:      apiKey,
	}, nil
}

// SetupTestDatabase connects to the gateway's database
func SetupTestDatabase(t *testing.T, config *TestConfig) *sql.DB {
	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return db
}

// chatResponse is the subset of the chat payload the tests assert on
type chatResponse struct {
	TokensUsed      int64 `json:"tokens_used"`
	TotalTokensUsed int64 `json:"total_tokens_used"`
}

// MakeChatRequest sends a metered chat call to the gateway
func MakeChatRequest(t *testing.T, config *TestConfig, prompt string) (*chatResponse, int) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req, err := http.NewRequest("POST", config.GatewayURL+"/api/chat", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", config.APIKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Chat request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("Failed to decode chat response: %v", err)
	}
	return &parsed, resp.StatusCode
}

// accountID resolves the metered account for the configured credential.
// Credentials are stored as SHA-256 hex digests.
func accountID(t *testing.T, db *sql.DB, config *TestConfig) string {
	t.Helper()

	digest := sha256.Sum256([]byte(config.APIKey))
	hash := hex.EncodeToString(digest[:])

	var id string
	err := db.QueryRow(`SELECT id FROM accounts WHERE api_key_hash = $1`, hash).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to resolve test account (is SEED_DEMO_ACCOUNT=true?): %v", err)
	}
	return id
}

// tokensUsed reads the account's current period counter
func tokensUsed(t *testing.T, db *sql.DB, id string) int64 {
	t.Helper()

	var used int64
	if err := db.QueryRow(`SELECT tokens_used FROM accounts WHERE id = $1`, id).Scan(&used); err != nil {
		t.Fatalf("Failed to read tokens_used: %v", err)
	}
	return used
}

// countChatRecords counts the account's chat usage rows since a point in time
func countChatRecords(t *testing.T, db *sql.DB, id string, since time.Time) int {
	t.Helper()

	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM usage_records
		WHERE account_id = $1
		AND endpoint = '/api/chat'
		AND created_at > $2
	`, id, since).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count usage records: %v", err)
	}
	return count
}

// TestChatSettlement verifies a metered call lands its usage record and
// token debit together. Settlement completes before the response is
// written, so the row must exist as soon as the call returns.
func TestChatSettlement(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	config, err := LoadTestConfig()
	if err != nil {
		t.Skip(fmt.Sprintf("Skipping integration test: %v", err))
	}

	db := SetupTestDatabase(t, config)
	defer db.Close()

	id := accountID(t, db, config)
	before := tokensUsed(t, db, id)
	start := time.Now().UTC().Add(-time.Second)

	resp, status := MakeChatRequest(t, config, "integration settlement check")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if resp.TokensUsed <= 0 {
		t.Fatalf("Expected positive token count, got %d", resp.TokensUsed)
	}

	if got := countChatRecords(t, db, id, start); got != 1 {
		t.Errorf("Expected 1 usage record, found %d", got)
	}

	after := tokensUsed(t, db, id)
	if after != before+resp.TokensUsed {
		t.Errorf("Token counter moved %d -> %d, want +%d", before, after, resp.TokensUsed)
	}
}

// TestConcurrentChatSettlement verifies no token debit is lost when calls
// settle concurrently.
func TestConcurrentChatSettlement(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	config, err := LoadTestConfig()
	if err != nil {
		t.Skip(fmt.Sprintf("Skipping integration test: %v", err))
	}

	db := SetupTestDatabase(t, config)
	defer db.Close()

	id := accountID(t, db, config)
	before := tokensUsed(t, db, id)
	start := time.Now().UTC().Add(-time.Second)

	const calls = 5
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp, status := MakeChatRequest(t, config, fmt.Sprintf("concurrent settlement check %d", n))
			if status != http.StatusOK {
				t.Errorf("Call %d: expected 200, got %d", n, status)
				return
			}
			mu.Lock()
			total += resp.TokensUsed
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if got := countChatRecords(t, db, id, start); got != calls {
		t.Errorf("Expected %d usage records, found %d", calls, got)
	}

	after := tokensUsed(t, db, id)
	if after != before+total {
		t.Errorf("Token counter moved %d -> %d, want +%d (lost update)", before, after, total)
	}
}

// TestHealthReady verifies the deployed gateway finished initialization.
func TestHealthReady(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	config, err := LoadTestConfig()
	if err != nil {
		t.Skip(fmt.Sprintf("Skipping integration test: %v", err))
	}

	resp, err := http.Get(config.GatewayURL + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
}
