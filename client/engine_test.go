package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chicken-hunt/internal/config"
	"chicken-hunt/internal/server"
)

type gamePlayer struct {
	ID    int
	Token string
}

func newSyncTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.New(nil, config.Default())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) map[string]any {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("POST %s returned status %d", url, resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func setupGame(t *testing.T, ts *httptest.Server) (string, gamePlayer, gamePlayer) {
	t.Helper()
	created := postJSON(t, ts.URL+"/api/games", map[string]any{})
	gameID := created["game_id"].(string)

	join := func(nickname string) gamePlayer {
		body := postJSON(t, ts.URL+"/api/games/"+gameID+"/join", map[string]string{"nickname": nickname})
		return gamePlayer{
			ID:    int(body["player_id"].(float64)),
			Token: body["auth_token"].(string),
		}
	}
	chicken := join("Ada")
	hunter := join("Grace")

	postJSON(t, ts.URL+"/api/games/"+gameID+"/chicken", map[string]any{
		"player_id": chicken.ID, "auth_token": chicken.Token,
	})
	postJSON(t, ts.URL+"/api/games/"+gameID+"/teams", map[string]any{
		"player_id": hunter.ID, "auth_token": hunter.Token, "name": "Foxes",
	})
	return gameID, chicken, hunter
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestEngineBaselineSnapshot(t *testing.T) {
	ts := newSyncTestServer(t)
	gameID, chicken, _ := setupGame(t, ts)

	engine, err := New(Config{
		BaseURL:      ts.URL,
		GameID:       gameID,
		PlayerID:     chicken.ID,
		PollInterval: time.Hour,
		PollOnly:     true,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(engine.Close)

	state := engine.State()
	if state.Game.ID != gameID || state.Game.Status != "lobby" {
		t.Fatalf("unexpected baseline game: %+v", state.Game)
	}
	if len(state.Players) != 2 || len(state.Teams) != 2 {
		t.Fatalf("expected 2 players and 2 teams, got %d and %d", len(state.Players), len(state.Teams))
	}
	if state.Game.CurrentCents != 5000 {
		t.Fatalf("expected balance 5000, got %d", state.Game.CurrentCents)
	}
}

func TestEngineRealtimeMerge(t *testing.T) {
	ts := newSyncTestServer(t)
	gameID, chicken, _ := setupGame(t, ts)

	engine, err := New(Config{
		BaseURL:      ts.URL,
		GameID:       gameID,
		PlayerID:     chicken.ID,
		PollInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(engine.Close)

	// Give the subscription a moment to attach before mutating.
	time.Sleep(200 * time.Millisecond)
	postJSON(t, ts.URL+"/api/games/"+gameID+"/join", map[string]string{"nickname": "Linus"})

	waitFor(t, 2*time.Second, func() bool {
		state := engine.State()
		for _, player := range state.Players {
			if player.Nickname == "Linus" {
				return true
			}
		}
		return false
	})
}

func TestEngineStatusCallbackFiresOnce(t *testing.T) {
	ts := newSyncTestServer(t)
	gameID, chicken, _ := setupGame(t, ts)

	statuses := make(chan string, 8)
	cachePath := filepath.Join(t.TempDir(), "session.json")
	cache := NewSessionCache(cachePath)
	if err := cache.Save(SessionRecord{PlayerID: chicken.ID, GameID: gameID}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	engine, err := New(Config{
		BaseURL:      ts.URL,
		GameID:       gameID,
		PlayerID:     chicken.ID,
		PollInterval: 50 * time.Millisecond,
		Cache:        cache,
		OnStatusChange: func(status string, onChickenTeam bool) {
			statuses <- status
		},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(engine.Close)

	postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{
		"player_id": chicken.ID, "auth_token": chicken.Token,
	})

	// The feed and the poll both observe the transition; the callback must
	// still fire exactly once.
	select {
	case status := <-statuses:
		if status != "in_progress" {
			t.Fatalf("expected in_progress, got %s", status)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a status callback")
	}
	select {
	case status := <-statuses:
		t.Fatalf("expected no duplicate callback, got %s", status)
	case <-time.After(300 * time.Millisecond):
	}

	record, ok := cache.Load()
	if !ok {
		t.Fatal("expected session record")
	}
	if record.GameStatus != "in_progress" || !record.IsChickenTeam {
		t.Fatalf("expected cache updated for chicken player, got %+v", record)
	}
}

func TestEnginePollOnlyConvergence(t *testing.T) {
	ts := newSyncTestServer(t)
	gameID, chicken, _ := setupGame(t, ts)

	engine, err := New(Config{
		BaseURL:      ts.URL,
		GameID:       gameID,
		PlayerID:     chicken.ID,
		PollInterval: 50 * time.Millisecond,
		PollOnly:     true,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(engine.Close)

	postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{
		"player_id": chicken.ID, "auth_token": chicken.Token,
	})

	// No realtime feed, so convergence comes from the reconciliation poll.
	waitFor(t, 2*time.Second, func() bool {
		return engine.State().Game.Status == "in_progress"
	})
}

func TestEngineStatusNeverRegresses(t *testing.T) {
	engine, err := New(Config{BaseURL: "http://localhost:0", GameID: "game-1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.state.Game = Game{ID: "game-1", Status: "chicken_hidden"}

	engine.applyStatus(&statusPayload{ID: "game-1", Status: "in_progress", CurrentCents: 4000})
	if engine.state.Game.Status != "chicken_hidden" {
		t.Fatalf("expected status to hold at chicken_hidden, got %s", engine.state.Game.Status)
	}

	engine.applyStatus(&statusPayload{ID: "game-1", Status: "finished", CurrentCents: 4000})
	if engine.state.Game.Status != "finished" {
		t.Fatalf("expected forward transition to apply, got %s", engine.state.Game.Status)
	}
}

func TestEngineIgnoresForeignGameEvents(t *testing.T) {
	engine, err := New(Config{BaseURL: "http://localhost:0", GameID: "game-1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.state.Game = Game{ID: "game-1", Status: "lobby"}

	row, _ := json.Marshal(map[string]any{"id": 9, "nickname": "Mallory"})
	engine.applyEvent(changeEvent{Table: "players", Type: "INSERT", GameID: "game-2", Row: row})
	if len(engine.state.Players) != 0 {
		t.Fatal("expected cross-game event to be dropped")
	}
}

func TestEngineDuplicateInsertIsNoOp(t *testing.T) {
	engine, err := New(Config{BaseURL: "http://localhost:0", GameID: "game-1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.state.Game = Game{ID: "game-1", Status: "lobby"}

	row, _ := json.Marshal(map[string]any{"id": 4, "nickname": "Ada", "team_id": 2})
	event := changeEvent{Table: "players", Type: "INSERT", GameID: "game-1", Row: row}
	engine.applyEvent(event)
	engine.applyEvent(event)
	if len(engine.state.Players) != 1 {
		t.Fatalf("expected 1 player after duplicate insert, got %d", len(engine.state.Players))
	}
}
