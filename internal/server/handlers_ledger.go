package server

import (
	"errors"
	"net/http"
	"strconv"
)

type ledgerRequest struct {
	PlayerID    int    `json:"player_id"`
	AuthToken   string `json:"auth_token"`
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type presetRequest struct {
	PlayerID  int    `json:"player_id"`
	AuthToken string `json:"auth_token"`
	Key       string `json:"key"`
}

func (s *Server) handleLedgerOperation(w http.ResponseWriter, r *http.Request) {
	var req ledgerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "kind and amount_cents are required")
		return
	}
	reason, err := validateReason(req.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, result, err := s.ExecuteOperation(gameID, req.Kind, req.AmountCents, req.PlayerID, reason)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse(game, result))
}

func (s *Server) handleLedgerPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}

	game, result, err := s.ExecutePreset(gameID, req.Key, req.PlayerID)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse(game, result))
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	game, ok := s.store.GetGame(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = value
	}

	var entries []LedgerEntry
	if _, err := s.store.UpdateGame(game.ID, func(game *Game) error {
		entries = ledgerHistory(game, limit)
		return nil
	}); err != nil {
		http.NotFound(w, r)
		return
	}
	rows := make([]map[string]any, 0, len(entries))
	for i := range entries {
		rows = append(rows, rowLedgerEntry(&entries[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":      game.ID,
		"transactions": rows,
	})
}

func (s *Server) handleLedgerStats(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	var payload map[string]any
	if _, err := s.store.UpdateGame(gameID, func(game *Game) error {
		payload = ledgerStatsPayload(game)
		return nil
	}); err != nil {
		http.NotFound(w, r)
		return
	}
	payload["game_id"] = gameID
	writeJSON(w, http.StatusOK, payload)
}

func operationResponse(game *Game, result *OperationResult) map[string]any {
	return map[string]any{
		"success":        true,
		"game_id":        game.ID,
		"previous_cents": result.PreviousCents,
		"new_cents":      result.NewCents,
		"transaction_id": result.TransactionID,
	}
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errGameNotFound):
		http.NotFound(w, r)
	case errors.Is(err, errInsufficientBalance),
		errors.Is(err, errNegativeAmount),
		errors.Is(err, errUnknownKind),
		errors.Is(err, errUnknownPreset),
		errors.Is(err, errGameFinished):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	default:
		writeError(w, http.StatusInternalServerError, "ledger operation failed")
	}
}
