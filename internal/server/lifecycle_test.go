package server

import (
	"net/http"
	"testing"
)

func TestStartRequiresChickenTeam(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)

	chicken := joinPlayer(t, ts, gameID, "Ada")
	hunter := joinPlayer(t, ts, gameID, "Grace")
	createTeam(t, ts, gameID, hunter, "Foxes")

	// No chicken team formed yet, so nobody can start.
	transition(t, ts, gameID, chicken, "start", http.StatusConflict)

	joinChicken(t, ts, gameID, chicken)
	transition(t, ts, gameID, hunter, "start", http.StatusConflict)

	body := transition(t, ts, gameID, chicken, "start", http.StatusOK)
	if body["status"] != "in_progress" {
		t.Fatalf("expected status in_progress, got %v", body["status"])
	}
}

func TestStartRequiresHunterTeam(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)

	chicken := joinPlayer(t, ts, gameID, "Ada")
	joinChicken(t, ts, gameID, chicken)

	transition(t, ts, gameID, chicken, "start", http.StatusConflict)

	hunter := joinPlayer(t, ts, gameID, "Grace")
	createTeam(t, ts, gameID, hunter, "Foxes")
	transition(t, ts, gameID, chicken, "start", http.StatusOK)
}

func TestHunterTeamExistenceSufficesWithoutMembers(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)

	chicken := joinPlayer(t, ts, gameID, "Ada")
	hunter := joinPlayer(t, ts, gameID, "Grace")
	joinChicken(t, ts, gameID, chicken)
	createTeam(t, ts, gameID, hunter, "Foxes")

	// The hunter leaves; the empty team still satisfies the start policy.
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/leave", map[string]any{
		"player_id":  hunter.ID,
		"auth_token": hunter.Token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	transition(t, ts, gameID, chicken, "start", http.StatusOK)
}

func TestHideRecordsTimestamp(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)
	chicken, _ := setupRunningGame(t, ts, gameID)

	body := transition(t, ts, gameID, chicken, "hide", http.StatusOK)
	if body["status"] != "chicken_hidden" {
		t.Fatalf("expected status chicken_hidden, got %v", body["status"])
	}
	if _, ok := body["hidden_at"].(string); !ok {
		t.Fatalf("expected hidden_at timestamp, got %v", body["hidden_at"])
	}
}

func TestHideRequiresChickenTeam(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)
	_, hunter := setupRunningGame(t, ts, gameID)

	transition(t, ts, gameID, hunter, "hide", http.StatusConflict)
}

func TestHideRequiresStartedGame(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)

	chicken := joinPlayer(t, ts, gameID, "Ada")
	joinChicken(t, ts, gameID, chicken)

	transition(t, ts, gameID, chicken, "hide", http.StatusConflict)
}

func TestFinishIsIdempotent(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)
	chicken, _ := setupRunningGame(t, ts, gameID)

	body := transition(t, ts, gameID, chicken, "finish", http.StatusOK)
	if body["already_finished"] != false {
		t.Fatalf("expected already_finished=false, got %v", body["already_finished"])
	}

	body = transition(t, ts, gameID, chicken, "finish", http.StatusOK)
	if body["already_finished"] != true {
		t.Fatalf("expected already_finished=true, got %v", body["already_finished"])
	}
	if body["status"] != "finished" {
		t.Fatalf("expected status finished, got %v", body["status"])
	}
}

func TestFinishRejectedFromLobby(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)

	chicken := joinPlayer(t, ts, gameID, "Ada")
	joinChicken(t, ts, gameID, chicken)

	transition(t, ts, gameID, chicken, "finish", http.StatusConflict)
}

func TestNoBackwardTransitions(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)
	chicken, _ := setupRunningGame(t, ts, gameID)

	transition(t, ts, gameID, chicken, "hide", http.StatusOK)

	// A second start must not move the game back to in_progress.
	transition(t, ts, gameID, chicken, "start", http.StatusConflict)
	if status := fetchStatus(t, ts, gameID); status["status"] != "chicken_hidden" {
		t.Fatalf("expected status chicken_hidden, got %v", status["status"])
	}

	transition(t, ts, gameID, chicken, "finish", http.StatusOK)
	transition(t, ts, gameID, chicken, "hide", http.StatusConflict)
	if status := fetchStatus(t, ts, gameID); status["status"] != "finished" {
		t.Fatalf("expected status finished, got %v", status["status"])
	}
}

func TestTransitionsRequireAuth(t *testing.T) {
	ts := newTestGameServer(t)
	gameID := createGame(t, ts)
	chicken, _ := setupRunningGame(t, ts, gameID)

	forged := testPlayer{ID: chicken.ID, Token: "not-the-token"}
	transition(t, ts, gameID, forged, "hide", http.StatusUnauthorized)
	transition(t, ts, gameID, testPlayer{ID: chicken.ID}, "hide", http.StatusUnauthorized)
}
