package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

const (
	TableGames   = "games"
	TableTeams   = "teams"
	TablePlayers = "players"
	TableLedger  = "ledger_transactions"
)

// ChangeEvent is one row-level change, already scoped to a game. Rows carry
// the public identifiers used on the wire, not database surrogate keys.
type ChangeEvent struct {
	Table  string         `json:"table"`
	Type   string         `json:"type"`
	GameID string         `json:"game_id"`
	Row    map[string]any `json:"row"`
}

// DecodeNotification parses a pg_notify payload produced by the row-change
// triggers in db/migrations.
func DecodeNotification(payload []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ChangeEvent{}, fmt.Errorf("malformed change payload: %w", err)
	}
	if err := validateEvent(event); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}

func validateEvent(event ChangeEvent) error {
	switch event.Table {
	case TableGames, TableTeams, TablePlayers, TableLedger:
	default:
		return fmt.Errorf("unknown table %q in change payload", event.Table)
	}
	switch event.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return fmt.Errorf("unknown event type %q in change payload", event.Type)
	}
	if event.GameID == "" {
		return errors.New("change payload missing game_id")
	}
	return nil
}
