package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chicken-hunt/internal/config"
)

type testPlayer struct {
	ID    int
	Token string
}

func newTestGameServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := New(nil, config.Default())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func createGame(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	id, _ := createGameWithCode(t, ts)
	return id
}

func createGameWithCode(t *testing.T, ts *httptest.Server) (string, string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["game_id"].(string), body["join_code"].(string)
}

func createGameWithBalance(t *testing.T, ts *httptest.Server, initialCents int64) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"initial_cents": initialCents,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	return decodeBody(t, resp)["game_id"].(string)
}

func joinPlayer(t *testing.T, ts *httptest.Server, gameID, nickname string) testPlayer {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/join", map[string]string{
		"nickname": nickname,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return testPlayer{
		ID:    int(body["player_id"].(float64)),
		Token: body["auth_token"].(string),
	}
}

func createTeam(t *testing.T, ts *httptest.Server, gameID string, player testPlayer, name string) int {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/teams", map[string]any{
		"player_id":  player.ID,
		"auth_token": player.Token,
		"name":       name,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	team := decodeBody(t, resp)["team"].(map[string]any)
	return int(team["id"].(float64))
}

func joinChicken(t *testing.T, ts *httptest.Server, gameID string, player testPlayer) int {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/chicken", map[string]any{
		"player_id":  player.ID,
		"auth_token": player.Token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	team := decodeBody(t, resp)["team"].(map[string]any)
	return int(team["id"].(float64))
}

// setupRunningGame joins a chicken player and a hunter player, forms both
// teams and starts the game.
func setupRunningGame(t *testing.T, ts *httptest.Server, gameID string) (testPlayer, testPlayer) {
	t.Helper()
	chicken := joinPlayer(t, ts, gameID, "Ada")
	hunter := joinPlayer(t, ts, gameID, "Grace")
	joinChicken(t, ts, gameID, chicken)
	createTeam(t, ts, gameID, hunter, "Foxes")
	transition(t, ts, gameID, chicken, "start", http.StatusOK)
	return chicken, hunter
}

func transition(t *testing.T, ts *httptest.Server, gameID string, player testPlayer, action string, wantStatus int) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/"+action, map[string]any{
		"player_id":  player.ID,
		"auth_token": player.Token,
	})
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s: expected status %d, got %d", action, wantStatus, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func ledgerOp(t *testing.T, ts *httptest.Server, gameID string, player testPlayer, kind string, amountCents int64) (*http.Response, map[string]any) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/ledger", map[string]any{
		"player_id":    player.ID,
		"auth_token":   player.Token,
		"kind":         kind,
		"amount_cents": amountCents,
	})
	return resp, decodeBody(t, resp)
}

func fetchStatus(t *testing.T, ts *httptest.Server, gameID string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func fetchSnapshot(t *testing.T, ts *httptest.Server, gameID string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func assertBalance(t *testing.T, ts *httptest.Server, gameID string, wantCents int64) {
	t.Helper()
	status := fetchStatus(t, ts, gameID)
	got := int64(status["current_cents"].(float64))
	if got != wantCents {
		t.Fatalf("expected balance %d, got %d", wantCents, got)
	}
}

func transactionCount(t *testing.T, ts *httptest.Server, gameID string) int {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID+"/ledger/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return int(decodeBody(t, resp)["transaction_count"].(float64))
}
