package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"chicken-hunt/internal/venue"

	qrcode "github.com/skip2/go-qrcode"
)

type attachVenuesRequest struct {
	PlayerID  int           `json:"player_id"`
	AuthToken string        `json:"auth_token"`
	Venues    []venue.Venue `json:"venues"`
}

// handleJoinQR renders the join URL as a QR code for the lobby screen.
func (s *Server) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	game, ok := s.store.GetGame(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	joinURL := fmt.Sprintf("http://%s/api/join/%s", r.Host, game.JoinCode)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleGameEvents(w http.ResponseWriter, r *http.Request) {
	game, ok := s.store.GetGame(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			limit = value
		}
	}
	events, err := s.loadEvents(game, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	rows := make([]map[string]any, 0, len(events))
	for _, event := range events {
		rows = append(rows, map[string]any{
			"id":         event.ID,
			"type":       event.Type,
			"payload":    event.Payload,
			"created_at": event.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"events":  rows,
	})
}

// handleVenueSearch proxies the external place-search collaborator. Results
// are opaque candidates for game setup.
func (s *Server) handleVenueSearch(w http.ResponseWriter, r *http.Request) {
	if s.places == nil {
		writeError(w, http.StatusServiceUnavailable, "venue search is not configured")
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := 500
	if raw := r.URL.Query().Get("radius"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			radius = value
		}
	}
	venues, err := s.places.Search(r.Context(), lat, lng, radius)
	if err != nil {
		log.Printf("venue search failed lat=%f lng=%f error=%v", lat, lng, err)
		writeError(w, http.StatusBadGateway, "venue search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

func (s *Server) handleAttachVenues(w http.ResponseWriter, r *http.Request) {
	var req attachVenuesRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "venues are required")
		return
	}
	gameID := r.PathValue("id")
	if !s.authorizePlayer(w, r, gameID, req.PlayerID, req.AuthToken) {
		return
	}
	game, ok := s.store.GetGame(gameID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.persistVenues(game, req.Venues); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save venues")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"count":   len(req.Venues),
	})
}
