package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
)

type createGameRequest struct {
	InitialCents    int64 `json:"initial_cents"`
	DurationMinutes int   `json:"duration_minutes"`
	MaxTeams        int   `json:"max_teams"`
}

type joinRequest struct {
	Nickname string `json:"nickname"`
}

type createTeamRequest struct {
	PlayerID  int    `json:"player_id"`
	AuthToken string `json:"auth_token"`
	Name      string `json:"name"`
}

type playerRequest struct {
	PlayerID  int    `json:"player_id"`
	AuthToken string `json:"auth_token"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	req := createGameRequest{
		InitialCents:    s.cfg.DefaultInitialCents,
		DurationMinutes: s.cfg.DefaultDurationMinutes,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := readJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid game configuration")
			return
		}
	}
	if req.InitialCents < 0 {
		writeError(w, http.StatusBadRequest, "initial balance must not be negative")
		return
	}
	if req.DurationMinutes < 0 || req.MaxTeams < 0 {
		writeError(w, http.StatusBadRequest, "invalid game configuration")
		return
	}

	game := s.store.CreateGame(req.InitialCents, req.DurationMinutes, req.MaxTeams)
	if err := s.persistGame(game); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	gamesCreatedTotal.Inc()
	log.Printf("game created game_id=%s join_code=%s initial_cents=%d", game.ID, game.JoinCode, game.InitialCents)
	writeJSON(w, http.StatusCreated, map[string]any{
		"game_id":   game.ID,
		"join_code": game.JoinCode,
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	summaries := s.store.ListGameSummaries()
	rows := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, map[string]any{
			"id":        summary.ID,
			"join_code": summary.JoinCode,
			"status":    summary.Status,
			"teams":     summary.Teams,
			"players":   summary.Players,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": rows})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	// Built under the store mutex so a concurrent mutation cannot produce
	// a torn snapshot.
	var snap map[string]any
	if _, err := s.store.UpdateGame(r.PathValue("id"), func(game *Game) error {
		snap = snapshot(game)
		return nil
	}); err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if _, err := s.store.UpdateGame(r.PathValue("id"), func(game *Game) error {
		payload = statusPayload(game)
		return nil
	}); err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleResolveJoinCode(w http.ResponseWriter, r *http.Request) {
	code, err := validateJoinCode(r.PathValue("code"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, ok := s.store.FindGameByJoinCode(code)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":   game.ID,
		"join_code": game.JoinCode,
		"status":    game.Status,
	})
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "nickname is required")
		return
	}
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, player, err := s.store.AddPlayer(r.PathValue("id"), nickname)
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if err := s.persistPlayer(game, player); err != nil {
		// The unique index caught a join race the advisory check missed;
		// the optimistic in-memory insert is rolled back.
		s.store.RemovePlayer(game.ID, player.ID)
		if errors.Is(err, errNicknameTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to join game")
		return
	}

	var token string
	var playerRow map[string]any
	if _, updateErr := s.store.UpdateGame(game.ID, func(game *Game) error {
		token = ensurePlayerAuthToken(game, player.ID)
		if current := findPlayer(game, player.ID); current != nil {
			playerRow = rowPlayer(current)
		}
		return nil
	}); updateErr != nil {
		writeError(w, http.StatusInternalServerError, "failed to join game")
		return
	}

	log.Printf("player joined game_id=%s player_id=%d nickname=%s", game.ID, player.ID, nickname)
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":    game.ID,
		"join_code":  game.JoinCode,
		"player_id":  player.ID,
		"nickname":   nickname,
		"auth_token": token,
	})
	if playerRow != nil {
		s.publishPlayerInsert(game.ID, playerRow)
	}
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "team name is required")
		return
	}
	name, err := validateTeamName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, team, err := s.store.CreateTeam(gameID, req.PlayerID, name)
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.persistTeam(game, team); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}
	player := s.mustPlayer(game, req.PlayerID)
	if player != nil {
		if err := s.persistPlayerTeam(game, player); err != nil {
			log.Printf("persist player team failed game_id=%s player_id=%d error=%v", game.ID, player.ID, err)
		}
	}
	teamRow, playerRow, _ := s.wireRows(game.ID, team.ID, req.PlayerID)

	log.Printf("team created game_id=%s team_id=%d name=%s", game.ID, team.ID, name)
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"team":    teamRow,
	})
	s.publishTeamInsert(game.ID, teamRow)
	if playerRow != nil {
		s.publishPlayerUpdate(game.ID, playerRow)
	}
}

// handleJoinChicken is the idempotent get-or-create for the single chicken
// team: a second call joins the caller to the existing team.
func (s *Server) handleJoinChicken(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, team, created, err := s.store.EnsureChickenTeam(gameID, req.PlayerID, "Chicken")
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if created {
		if err := s.persistTeam(game, team); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create team")
			return
		}
	}
	player := s.mustPlayer(game, req.PlayerID)
	if player != nil {
		if err := s.persistPlayerTeam(game, player); err != nil {
			log.Printf("persist player team failed game_id=%s player_id=%d error=%v", game.ID, player.ID, err)
		}
	}

	teamRow, playerRow, gameRow := s.wireRows(game.ID, team.ID, req.PlayerID)

	log.Printf("chicken team joined game_id=%s team_id=%d player_id=%d created=%t", game.ID, team.ID, req.PlayerID, created)
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"team":    teamRow,
		"created": created,
	})
	if created {
		s.publishTeamInsert(game.ID, teamRow)
		s.publishGameUpdate(game.ID, gameRow)
	}
	if playerRow != nil {
		s.publishPlayerUpdate(game.ID, playerRow)
	}
}

func (s *Server) handleJoinTeam(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	teamID, err := strconv.Atoi(r.PathValue("teamID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, player, err := s.store.JoinTeam(gameID, req.PlayerID, teamID)
	if err != nil {
		if errors.Is(err, errGameNotFound) || errors.Is(err, errTeamNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.persistPlayerTeam(game, player); err != nil {
		log.Printf("persist player team failed game_id=%s player_id=%d error=%v", game.ID, player.ID, err)
	}
	_, playerRow, _ := s.wireRows(game.ID, 0, req.PlayerID)
	log.Printf("player joined team game_id=%s player_id=%d team_id=%d", game.ID, player.ID, teamID)
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"player":  playerRow,
	})
	s.publishPlayerUpdate(game.ID, playerRow)
}

func (s *Server) handleLeaveTeam(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, player, err := s.store.LeaveTeam(gameID, req.PlayerID)
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.persistPlayerTeam(game, player); err != nil {
		log.Printf("persist player team failed game_id=%s player_id=%d error=%v", game.ID, player.ID, err)
	}
	_, playerRow, _ := s.wireRows(game.ID, 0, req.PlayerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"player":  playerRow,
	})
	s.publishPlayerUpdate(game.ID, playerRow)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	game, err := s.StartGame(r.PathValue("id"), req.PlayerID, req.AuthToken)
	if err != nil {
		s.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(game))
}

func (s *Server) handleHideChicken(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	game, err := s.HideChicken(r.PathValue("id"), req.PlayerID, req.AuthToken)
	if err != nil {
		s.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(game))
}

func (s *Server) handleFinishGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	game, already, err := s.FinishGame(r.PathValue("id"), req.PlayerID, req.AuthToken)
	if err != nil {
		s.writeLifecycleError(w, r, err)
		return
	}
	payload := statusPayload(game)
	payload["already_finished"] = already
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errGameNotFound):
		http.NotFound(w, r)
	case errors.Is(err, errAuthRequired), errors.Is(err, errInvalidAuth), errors.Is(err, errPlayerNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusConflict, err.Error())
	}
}

// authorizePlayer re-validates the caller against the server-side token
// record before any privileged mutation. The check runs under the store
// mutex so it cannot race a concurrent token issue.
func (s *Server) authorizePlayer(w http.ResponseWriter, r *http.Request, gameID string, playerID int, token string) bool {
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if findPlayer(game, playerID) == nil {
			return errPlayerNotFound
		}
		return checkPlayerAuth(game, playerID, token)
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, errGameNotFound):
		http.NotFound(w, r)
	default:
		writeError(w, http.StatusUnauthorized, err.Error())
	}
	return false
}

// wireRows rebuilds the wire shapes for a team, a player, and the game under
// the store mutex. Handlers must not pass the live records returned by a
// store mutation into a publish; a later mutation could interleave with the
// row building.
func (s *Server) wireRows(gameID string, teamID, playerID int) (teamRow, playerRow, gameRow map[string]any) {
	_, _ = s.store.UpdateGame(gameID, func(game *Game) error {
		if team, ok := game.FindTeam(teamID); ok {
			teamRow = rowTeam(team)
		}
		if player := findPlayer(game, playerID); player != nil {
			playerRow = rowPlayer(player)
		}
		gameRow = rowGame(game)
		return nil
	})
	return teamRow, playerRow, gameRow
}

func (s *Server) mustPlayer(game *Game, playerID int) *Player {
	_, player, ok := s.store.GetPlayer(game.ID, playerID)
	if !ok {
		return nil
	}
	return player
}
