package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"chicken-hunt/internal/bus"

	"github.com/gorilla/websocket"
)

// wsMessage is the envelope sent to subscribers: a full snapshot on connect,
// then discrete change events.
type wsMessage struct {
	Type     string           `json:"type"`
	Snapshot map[string]any   `json:"snapshot,omitempty"`
	Event    *bus.ChangeEvent `json:"event,omitempty"`
}

type subscription struct {
	gameID string
	tables map[string]struct{}
}

func (sub *subscription) matches(event bus.ChangeEvent) bool {
	if sub.gameID != event.GameID {
		return false
	}
	_, ok := sub.tables[event.Table]
	return ok
}

// wsClient serializes writes to one connection. gorilla/websocket supports a
// single concurrent writer, and both the snapshot send and the fan-out from
// mutation handlers target the same connection.
type wsClient struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type wsHub struct {
	mu   sync.Mutex
	subs map[*wsClient]*subscription
}

func newWSHub() *wsHub {
	return &wsHub{subs: make(map[*wsClient]*subscription)}
}

func (h *wsHub) Add(client *wsClient, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[client] = sub
	wsSubscriptions.Set(float64(len(h.subs)))
}

func (h *wsHub) Remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[client]; ok {
		delete(h.subs, client)
		_ = client.conn.Close()
	}
	wsSubscriptions.Set(float64(len(h.subs)))
}

func (h *wsHub) Send(client *wsClient, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = client.write(data)
}

// Publish fans a change event out to every subscription whose filter
// matches. Delivery is best-effort; a failed write drops the connection and
// the client's reconciliation poll covers the gap.
func (h *wsHub) Publish(event bus.ChangeEvent) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.subs))
	for client, sub := range h.subs {
		if sub.matches(event) {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	busEventsPublished.WithLabelValues(event.Table, event.Type).Inc()
	data, err := json.Marshal(wsMessage{Type: "change", Event: &event})
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.Remove(client)
		}
	}
}

func parseTables(raw string) map[string]struct{} {
	tables := make(map[string]struct{})
	if raw == "" {
		tables[bus.TableGames] = struct{}{}
		tables[bus.TableTeams] = struct{}{}
		tables[bus.TablePlayers] = struct{}{}
		tables[bus.TableLedger] = struct{}{}
		return tables
	}
	for _, table := range strings.Split(raw, ",") {
		table = strings.TrimSpace(table)
		switch table {
		case bus.TableGames, bus.TableTeams, bus.TablePlayers, bus.TableLedger:
			tables[table] = struct{}{}
		}
	}
	return tables
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	if _, ok := s.store.GetGame(gameID); !ok {
		http.NotFound(w, r)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected game_id=%s remote=%s", gameID, r.RemoteAddr)
	client := &wsClient{conn: conn}
	sub := &subscription{
		gameID: gameID,
		tables: parseTables(r.URL.Query().Get("tables")),
	}
	// Register before building the snapshot so no change falls between the
	// two: an event published while the snapshot is assembled reaches the
	// subscriber as well as the snapshot, and duplicates merge idempotently
	// on the client.
	s.hub.Add(client, sub)
	var snap map[string]any
	if _, err := s.store.UpdateGame(gameID, func(game *Game) error {
		snap = snapshot(game)
		return nil
	}); err != nil {
		s.hub.Remove(client)
		return
	}
	s.hub.Send(client, wsMessage{Type: "snapshot", Snapshot: snap})
	go s.readWS(gameID, client)
}

func (s *Server) readWS(gameID string, client *wsClient) {
	defer s.hub.Remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Printf("ws disconnected game_id=%s error=%v", gameID, err)
			return
		}
	}
}

// PublishChange feeds an externally observed row change (the Postgres
// LISTEN/NOTIFY listener) into the same fan-out as local mutations.
// Duplicate delivery against a local publish is tolerated: clients merge
// idempotently by id.
func (s *Server) PublishChange(event bus.ChangeEvent) {
	s.hub.Publish(event)
}

// The publish helpers take prebuilt rows. Rows must be assembled inside the
// store mutation that produced them; a row built from a live *Game after the
// mutex is released can observe a later mutation mid-read.

func (s *Server) publishGameUpdate(gameID string, row map[string]any) {
	s.hub.Publish(bus.ChangeEvent{
		Table:  bus.TableGames,
		Type:   bus.EventUpdate,
		GameID: gameID,
		Row:    row,
	})
}

func (s *Server) publishTeamInsert(gameID string, row map[string]any) {
	s.hub.Publish(bus.ChangeEvent{
		Table:  bus.TableTeams,
		Type:   bus.EventInsert,
		GameID: gameID,
		Row:    row,
	})
}

func (s *Server) publishPlayerInsert(gameID string, row map[string]any) {
	s.hub.Publish(bus.ChangeEvent{
		Table:  bus.TablePlayers,
		Type:   bus.EventInsert,
		GameID: gameID,
		Row:    row,
	})
}

func (s *Server) publishPlayerUpdate(gameID string, row map[string]any) {
	s.hub.Publish(bus.ChangeEvent{
		Table:  bus.TablePlayers,
		Type:   bus.EventUpdate,
		GameID: gameID,
		Row:    row,
	})
}

func (s *Server) publishLedgerInsert(gameID string, row map[string]any) {
	s.hub.Publish(bus.ChangeEvent{
		Table:  bus.TableLedger,
		Type:   bus.EventInsert,
		GameID: gameID,
		Row:    row,
	})
}
