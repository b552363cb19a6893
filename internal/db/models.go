package db

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	ID       uint   `gorm:"primaryKey"`
	PublicID string `gorm:"size:32;uniqueIndex;not null"`
	// Join-code uniqueness is scoped to live games; the SQL migration
	// declares a partial unique index, which a gorm tag cannot express.
	JoinCode        string `gorm:"size:12;index;not null"`
	Status          string `gorm:"size:32;not null"`
	InitialCents    int64  `gorm:"not null;default:0"`
	CurrentCents    int64  `gorm:"not null;default:0"`
	MaxTeams        int    `gorm:"not null;default:0"`
	DurationMinutes int    `gorm:"not null;default:0"`
	ChickenTeamID   *uint  `gorm:"index"`
	HiddenAt        *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
	Teams           []Team
	Players         []Player
	Transactions    []LedgerTransaction
	Events          []Event
	Venues          []Venue
}

type Team struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_teams_game_name"`
	PublicID  int       `gorm:"not null"`
	Name      string    `gorm:"size:64;not null;uniqueIndex:idx_teams_game_name"`
	IsChicken bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Players   []Player
}

type Player struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_players_game_nickname"`
	PublicID  int       `gorm:"not null"`
	Nickname  string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_nickname"`
	TeamID    *uint     `gorm:"index"`
	JoinedAt  time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// LedgerTransaction rows are append-only; they are never updated or deleted.
type LedgerTransaction struct {
	ID            uint      `gorm:"primaryKey"`
	GameID        uint      `gorm:"index;not null"`
	PublicID      int       `gorm:"not null"`
	Kind          string    `gorm:"size:16;not null"`
	AmountCents   int64     `gorm:"not null"`
	BalanceBefore int64     `gorm:"not null"`
	BalanceAfter  int64     `gorm:"not null"`
	Reason        string    `gorm:"size:280"`
	PlayerID      *uint     `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	PlayerID  *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

// Venue is an opaque candidate venue attached to a game during setup. The
// records come from the external place-search collaborator untouched.
type Venue struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null"`
	Name      string    `gorm:"size:128;not null"`
	Address   string    `gorm:"size:280"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	SourceID  string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
}
