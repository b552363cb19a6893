package client

import "time"

// Wire types decoded from the server's snapshot and change events.

type Game struct {
	ID              string     `json:"id"`
	JoinCode        string     `json:"join_code"`
	Status          string     `json:"status"`
	InitialCents    int64      `json:"initial_cents"`
	CurrentCents    int64      `json:"current_cents"`
	MaxTeams        int        `json:"max_teams"`
	DurationMinutes int        `json:"duration_minutes"`
	ChickenTeamID   int        `json:"chicken_team_id"`
	HiddenAt        *time.Time `json:"hidden_at,omitempty"`
}

type Team struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsChicken bool   `json:"is_chicken"`
}

type Player struct {
	ID       int    `json:"id"`
	Nickname string `json:"nickname"`
	TeamID   int    `json:"team_id"`
}

type LedgerStats struct {
	CurrentCents     int64            `json:"current_cents"`
	InitialCents     int64            `json:"initial_cents"`
	NetChangeCents   int64            `json:"net_change_cents"`
	PerKindTotals    map[string]int64 `json:"per_kind_totals"`
	TransactionCount int              `json:"transaction_count"`
}

// GameState is the device's merged view. Maps are keyed by entity id, which
// is what makes applying a duplicated or re-delivered event a no-op.
type GameState struct {
	Game       Game
	Teams      map[int]Team
	Players    map[int]Player
	Ledger     LedgerStats
	LedgerSeen int
}

func newGameState() GameState {
	return GameState{
		Teams:   make(map[int]Team),
		Players: make(map[int]Player),
	}
}

// clone returns a copy safe to hand to callers while the engine keeps
// mutating its own state.
func (s GameState) clone() GameState {
	out := s
	out.Teams = make(map[int]Team, len(s.Teams))
	for id, team := range s.Teams {
		out.Teams[id] = team
	}
	out.Players = make(map[int]Player, len(s.Players))
	for id, player := range s.Players {
		out.Players[id] = player
	}
	if s.Ledger.PerKindTotals != nil {
		out.Ledger.PerKindTotals = make(map[string]int64, len(s.Ledger.PerKindTotals))
		for kind, total := range s.Ledger.PerKindTotals {
			out.Ledger.PerKindTotals[kind] = total
		}
	}
	return out
}

func statusRank(status string) int {
	switch status {
	case "lobby":
		return 0
	case "in_progress":
		return 1
	case "chicken_hidden":
		return 2
	case "finished":
		return 3
	default:
		return -1
	}
}
