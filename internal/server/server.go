package server

import (
	"net/http"
	"sync"
	"time"

	"chicken-hunt/internal/config"
	"chicken-hunt/internal/venue"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Server struct {
	store    *Store
	db       *gorm.DB
	hub      *wsHub
	cfg      config.Config
	places   venue.PlaceSearch
	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	return &Server{
		store:  NewStore(),
		db:     conn,
		hub:    newWSHub(),
		cfg:    cfg,
		timers: make(map[string]*time.Timer),
	}
}

// SetPlaceSearch wires the external venue collaborator; without it the venue
// endpoints report unavailable.
func (s *Server) SetPlaceSearch(places venue.PlaceSearch) {
	s.places = places
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	mux.HandleFunc("GET /api/games/{id}/status", s.handleGameStatus)
	mux.HandleFunc("GET /api/join/{code}", s.handleResolveJoinCode)

	mux.HandleFunc("POST /api/games/{id}/join", s.handleJoinGame)
	mux.HandleFunc("POST /api/games/{id}/teams", s.handleCreateTeam)
	mux.HandleFunc("POST /api/games/{id}/chicken", s.handleJoinChicken)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamID}/join", s.handleJoinTeam)
	mux.HandleFunc("POST /api/games/{id}/leave", s.handleLeaveTeam)

	mux.HandleFunc("POST /api/games/{id}/start", s.handleStartGame)
	mux.HandleFunc("POST /api/games/{id}/hide", s.handleHideChicken)
	mux.HandleFunc("POST /api/games/{id}/finish", s.handleFinishGame)

	mux.HandleFunc("POST /api/games/{id}/ledger", s.handleLedgerOperation)
	mux.HandleFunc("POST /api/games/{id}/ledger/preset", s.handleLedgerPreset)
	mux.HandleFunc("GET /api/games/{id}/ledger", s.handleLedgerHistory)
	mux.HandleFunc("GET /api/games/{id}/ledger/stats", s.handleLedgerStats)

	mux.HandleFunc("GET /api/games/{id}/events", s.handleGameEvents)
	mux.HandleFunc("GET /api/games/{id}/qr", s.handleJoinQR)
	mux.HandleFunc("POST /api/games/{id}/venues", s.handleAttachVenues)
	mux.HandleFunc("GET /api/venues", s.handleVenueSearch)

	mux.HandleFunc("GET /ws/games/{id}", s.handleWebsocket)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
