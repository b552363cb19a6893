package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPollInterval = 30 * time.Second
	wsReconnectDelay    = time.Second
)

type Config struct {
	BaseURL  string
	GameID   string
	PlayerID int

	// PollInterval bounds staleness: even with every realtime event lost,
	// the device converges within one interval.
	PollInterval time.Duration

	// PollOnly disables the realtime subscription and relies solely on the
	// reconciliation poll.
	PollOnly bool

	Cache *SessionCache

	// OnStatusChange fires exactly once per observed forward status
	// transition, regardless of whether the subscription or the poll saw
	// it first.
	OnStatusChange func(status string, onChickenTeam bool)

	HTTPClient *http.Client
}

// Engine keeps one device's in-memory view of a game consistent with the
// server. Change events merge idempotently by entity id; the poll corrects
// anything the feed dropped. The server stays the final authority.
type Engine struct {
	cfg   Config
	httpc *http.Client

	mu            sync.Mutex
	state         GameState
	announcedRank int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type changeEvent struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	GameID string          `json:"game_id"`
	Row    json.RawMessage `json:"row"`
}

type wsEnvelope struct {
	Type     string          `json:"type"`
	Snapshot json.RawMessage `json:"snapshot"`
	Event    *changeEvent    `json:"event"`
}

func New(cfg Config) (*Engine, error) {
	if cfg.BaseURL == "" || cfg.GameID == "" {
		return nil, errors.New("base URL and game id are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Engine{
		cfg:           cfg,
		httpc:         httpc,
		state:         newGameState(),
		announcedRank: -1,
	}, nil
}

// Start fetches the authoritative baseline snapshot and then runs the
// subscription and poll loops until Close. Start does not block beyond the
// baseline fetch.
func (e *Engine) Start(ctx context.Context) error {
	snapshot, err := e.fetchSnapshot(ctx)
	if err != nil {
		return err
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.applySnapshot(snapshot)

	if !e.cfg.PollOnly {
		e.wg.Add(1)
		go e.subscribeLoop()
	}
	e.wg.Add(1)
	go e.pollLoop()
	return nil
}

// Close tears down the subscription and the poll timer. Responses from
// requests still in flight are discarded, never applied.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// State returns a copy of the merged view.
func (e *Engine) State() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

func (e *Engine) subscribeLoop() {
	defer e.wg.Done()
	for {
		if e.ctx.Err() != nil {
			return
		}
		if err := e.subscribeOnce(); err != nil && e.ctx.Err() == nil {
			log.Printf("subscription dropped game_id=%s error=%v", e.cfg.GameID, err)
		}
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(wsReconnectDelay):
		}
	}
}

func (e *Engine) subscribeOnce() error {
	conn, _, err := websocket.DefaultDialer.DialContext(e.ctx, e.wsURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the socket when the engine closes so the read below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-e.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope wsEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			log.Printf("dropped malformed message game_id=%s error=%v", e.cfg.GameID, err)
			continue
		}
		switch envelope.Type {
		case "snapshot":
			var snapshot snapshotPayload
			if err := json.Unmarshal(envelope.Snapshot, &snapshot); err == nil {
				e.applySnapshot(&snapshot)
			}
		case "change":
			if envelope.Event != nil {
				e.applyEvent(*envelope.Event)
			}
		}
	}
}

func (e *Engine) wsURL() string {
	wsBase := e.cfg.BaseURL
	if strings.HasPrefix(wsBase, "https://") {
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	} else if strings.HasPrefix(wsBase, "http://") {
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return wsBase + "/ws/games/" + url.PathEscape(e.cfg.GameID)
}

// pollLoop is the reconciliation backstop: a low-frequency authoritative
// re-fetch of the status-bearing fields.
func (e *Engine) pollLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			status, err := e.fetchStatus(e.ctx)
			if err != nil {
				if e.ctx.Err() == nil {
					log.Printf("reconciliation poll failed game_id=%s error=%v", e.cfg.GameID, err)
				}
				continue
			}
			e.applyStatus(status)
		}
	}
}

func (e *Engine) applySnapshot(snapshot *snapshotPayload) {
	e.mu.Lock()
	if e.closedLocked() {
		e.mu.Unlock()
		return
	}
	// A snapshot is authoritative except that status never moves backward:
	// a stale response must not undo a transition already observed.
	if statusRank(snapshot.Game.Status) >= statusRank(e.state.Game.Status) {
		e.state.Game = snapshot.Game
	} else {
		status := e.state.Game.Status
		e.state.Game = snapshot.Game
		e.state.Game.Status = status
	}
	e.state.Teams = make(map[int]Team, len(snapshot.Teams))
	for _, team := range snapshot.Teams {
		e.state.Teams[team.ID] = team
	}
	e.state.Players = make(map[int]Player, len(snapshot.Players))
	for _, player := range snapshot.Players {
		e.state.Players[player.ID] = player
	}
	e.state.Ledger = snapshot.Ledger
	e.mu.Unlock()
	e.announceStatus()
}

func (e *Engine) applyStatus(status *statusPayload) {
	if status.ID != e.cfg.GameID {
		return
	}
	e.mu.Lock()
	if e.closedLocked() {
		e.mu.Unlock()
		return
	}
	if statusRank(status.Status) >= statusRank(e.state.Game.Status) {
		e.state.Game.Status = status.Status
		e.state.Game.ChickenTeamID = status.ChickenTeamID
		e.state.Game.CurrentCents = status.CurrentCents
	}
	e.mu.Unlock()
	e.announceStatus()
}

// applyEvent merges one change event by primary key: INSERT is a no-op when
// the id is already known, UPDATE replaces, DELETE removes. The game id is
// re-checked here because the subscription filter is advisory.
func (e *Engine) applyEvent(event changeEvent) {
	if event.GameID != e.cfg.GameID {
		return
	}
	e.mu.Lock()
	if e.closedLocked() {
		e.mu.Unlock()
		return
	}
	switch event.Table {
	case "games":
		var game Game
		if err := json.Unmarshal(event.Row, &game); err == nil && game.ID == e.cfg.GameID {
			if statusRank(game.Status) >= statusRank(e.state.Game.Status) {
				e.state.Game = game
			}
		}
	case "teams":
		var team Team
		if err := json.Unmarshal(event.Row, &team); err != nil {
			break
		}
		switch event.Type {
		case "INSERT":
			if _, exists := e.state.Teams[team.ID]; !exists {
				e.state.Teams[team.ID] = team
			}
		case "UPDATE":
			e.state.Teams[team.ID] = team
		case "DELETE":
			delete(e.state.Teams, team.ID)
		}
	case "players":
		var player Player
		if err := json.Unmarshal(event.Row, &player); err != nil {
			break
		}
		switch event.Type {
		case "INSERT":
			if _, exists := e.state.Players[player.ID]; !exists {
				e.state.Players[player.ID] = player
			}
		case "UPDATE":
			e.state.Players[player.ID] = player
		case "DELETE":
			delete(e.state.Players, player.ID)
		}
	case "ledger_transactions":
		var entry struct {
			ID           int   `json:"id"`
			BalanceAfter int64 `json:"balance_after"`
		}
		if err := json.Unmarshal(event.Row, &entry); err != nil {
			break
		}
		if event.Type == "INSERT" && entry.ID > e.state.LedgerSeen {
			e.state.LedgerSeen = entry.ID
			e.state.Game.CurrentCents = entry.BalanceAfter
		}
	}
	e.mu.Unlock()
	e.announceStatus()
}

// announceStatus fires the transition callback at most once per status,
// whichever path observed it first, and refreshes the session cache.
func (e *Engine) announceStatus() {
	e.mu.Lock()
	status := e.state.Game.Status
	rank := statusRank(status)
	if rank <= e.announcedRank {
		e.mu.Unlock()
		return
	}
	e.announcedRank = rank
	chicken := e.onChickenTeamLocked()
	e.mu.Unlock()

	if e.cfg.Cache != nil {
		e.cfg.Cache.Update(func(record *SessionRecord) {
			record.GameStatus = status
			record.IsChickenTeam = chicken
		})
	}
	if e.cfg.OnStatusChange != nil && rank > 0 {
		e.cfg.OnStatusChange(status, chicken)
	}
}

func (e *Engine) onChickenTeamLocked() bool {
	if e.state.Game.ChickenTeamID == 0 {
		return false
	}
	player, ok := e.state.Players[e.cfg.PlayerID]
	if !ok {
		return false
	}
	return player.TeamID == e.state.Game.ChickenTeamID
}

func (e *Engine) closedLocked() bool {
	return e.ctx != nil && e.ctx.Err() != nil
}
