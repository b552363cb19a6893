package server

import (
	"errors"
	"log"
)

var (
	errNotChickenTeam    = errors.New("only the chicken team can do this")
	errNoHunterTeams     = errors.New("at least one hunter team is required")
	errNotStarted        = errors.New("game has not started")
	errAlreadyHidden     = errors.New("chicken is already hidden")
	errGameFinished      = errors.New("game is finished")
	errInvalidTransition = errors.New("invalid status transition")
)

// Transition policy is re-validated server-side on every call; a client's
// local view of the preconditions is never trusted.

// StartGame moves lobby -> in_progress. The caller must be on the chicken
// team and at least one hunter team must exist (membership count does not
// matter, team existence does).
func (s *Server) StartGame(gameID string, playerID int, authToken string) (*Game, error) {
	var from string
	var snap Game
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if err := checkPlayerAuth(game, playerID, authToken); err != nil {
			return err
		}
		player := findPlayer(game, playerID)
		if player == nil {
			return errPlayerNotFound
		}
		if !game.onChickenTeam(player) {
			return errNotChickenTeam
		}
		if game.HunterTeamCount() == 0 {
			return errNoHunterTeams
		}
		switch game.Status {
		case statusLobby:
		case statusFinished:
			return errGameFinished
		default:
			return errGameAlreadyActive
		}
		from = game.Status
		game.Status = statusInProgress
		game.StartedAt = timeNowUTC()
		snap = *game
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(&snap, from, statusInProgress, playerID, "game_started")
	s.scheduleGameTimer(&snap)
	return &snap, nil
}

// HideChicken moves in_progress -> chicken_hidden and records the hidden
// timestamp.
func (s *Server) HideChicken(gameID string, playerID int, authToken string) (*Game, error) {
	var from string
	var snap Game
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if err := checkPlayerAuth(game, playerID, authToken); err != nil {
			return err
		}
		player := findPlayer(game, playerID)
		if player == nil {
			return errPlayerNotFound
		}
		if !game.onChickenTeam(player) {
			return errNotChickenTeam
		}
		switch game.Status {
		case statusInProgress:
		case statusChickenHidden:
			return errAlreadyHidden
		case statusFinished:
			return errGameFinished
		default:
			return errNotStarted
		}
		from = game.Status
		game.Status = statusChickenHidden
		game.HiddenAt = timeNowUTC()
		snap = *game
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(&snap, from, statusChickenHidden, playerID, "chicken_hidden")
	return &snap, nil
}

// FinishGame moves any post-start state to finished. Finishing an already
// finished game is a success no-op: clients deliver at least once and a
// duplicate submission must not surface as an error.
func (s *Server) FinishGame(gameID string, playerID int, authToken string) (*Game, bool, error) {
	var from string
	var snap Game
	alreadyFinished := false
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if err := checkPlayerAuth(game, playerID, authToken); err != nil {
			return err
		}
		player := findPlayer(game, playerID)
		if player == nil {
			return errPlayerNotFound
		}
		if !game.onChickenTeam(player) {
			return errNotChickenTeam
		}
		switch game.Status {
		case statusFinished:
			alreadyFinished = true
			snap = *game
			return nil
		case statusInProgress, statusChickenHidden:
		default:
			return errNotStarted
		}
		from = game.Status
		game.Status = statusFinished
		snap = *game
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if alreadyFinished {
		return &snap, true, nil
	}
	s.afterTransition(&snap, from, statusFinished, playerID, "game_finished")
	s.cancelGameTimer(snap.ID)
	return &snap, false, nil
}

// finishExpiredGame is the duration-timer path; it bypasses player auth
// since the server itself is the caller.
func (s *Server) finishExpiredGame(gameID string, expectedStatus string) {
	var from string
	var snap Game
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if game.Status != expectedStatus {
			return errInvalidTransition
		}
		switch game.Status {
		case statusInProgress, statusChickenHidden:
		default:
			return errInvalidTransition
		}
		from = game.Status
		game.Status = statusFinished
		snap = *game
		return nil
	})
	if err != nil {
		return
	}
	log.Printf("game expired game_id=%s from=%s", snap.ID, from)
	s.afterTransition(&snap, from, statusFinished, 0, "game_expired")
}

// afterTransition performs the side effects of a successful status write:
// persistence, audit event, metrics, and the bus fan-out that every
// connected device converges on. The game argument is the value copy taken
// under the store mutex, never the live record.
func (s *Server) afterTransition(game *Game, from, to string, playerID int, eventType string) {
	statusTransitionsTotal.WithLabelValues(from, to).Inc()
	if err := s.persistStatus(game); err != nil {
		log.Printf("persist status failed game_id=%s status=%s error=%v", game.ID, game.Status, err)
	}
	if err := s.persistEvent(game, eventType, EventPayload{
		Status:   to,
		PlayerID: playerID,
	}); err != nil {
		log.Printf("persist event failed game_id=%s type=%s error=%v", game.ID, eventType, err)
	}
	log.Printf("game transitioned game_id=%s from=%s to=%s", game.ID, from, to)
	s.publishGameUpdate(game.ID, rowGame(game))
}
