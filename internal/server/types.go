package server

import "time"

const (
	statusLobby         = "lobby"
	statusInProgress    = "in_progress"
	statusChickenHidden = "chicken_hidden"
	statusFinished      = "finished"
)

const (
	kindAdd      = "add"
	kindSubtract = "subtract"
	kindSet      = "set"
	kindReset    = "reset"
)

type GameSummary struct {
	ID       string
	JoinCode string
	Status   string
	Teams    int
	Players  int
}

type Game struct {
	ID               string
	DBID             uint
	JoinCode         string
	Status           string
	InitialCents     int64
	CurrentCents     int64
	MaxTeams         int
	DurationMinutes  int
	ChickenTeamID    int
	StartedAt        time.Time
	HiddenAt         time.Time
	CreatedAt        time.Time
	Teams            []Team
	Players          []Player
	Ledger           []LedgerEntry
	PlayerAuthTokens map[int]string
}

type Team struct {
	ID        int
	DBID      uint
	Name      string
	IsChicken bool
}

// Player.TeamID is zero while the player is unassigned.
type Player struct {
	ID       int
	DBID     uint
	Nickname string
	TeamID   int
	JoinedAt time.Time
}

type LedgerEntry struct {
	ID            int
	DBID          uint
	Kind          string
	AmountCents   int64
	BalanceBefore int64
	BalanceAfter  int64
	Reason        string
	PlayerID      int
	CreatedAt     time.Time
}

// statusRank orders the lifecycle states; transitions may never decrease it.
func statusRank(status string) int {
	switch status {
	case statusLobby:
		return 0
	case statusInProgress:
		return 1
	case statusChickenHidden:
		return 2
	case statusFinished:
		return 3
	default:
		return -1
	}
}

func (g *Game) FindTeam(teamID int) (*Team, bool) {
	for i := range g.Teams {
		if g.Teams[i].ID == teamID {
			return &g.Teams[i], true
		}
	}
	return nil, false
}

func (g *Game) ChickenTeam() (*Team, bool) {
	for i := range g.Teams {
		if g.Teams[i].IsChicken {
			return &g.Teams[i], true
		}
	}
	return nil, false
}

func (g *Game) HunterTeamCount() int {
	count := 0
	for i := range g.Teams {
		if !g.Teams[i].IsChicken {
			count++
		}
	}
	return count
}

func (g *Game) onChickenTeam(player *Player) bool {
	return g.ChickenTeamID != 0 && player != nil && player.TeamID == g.ChickenTeamID
}
