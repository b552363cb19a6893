package server

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"chicken-hunt/internal/db"
	"chicken-hunt/internal/venue"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
)

// Persistence mirrors the in-memory store into Postgres. Every helper is a
// no-op when the server runs without a database (tests, throwaway games).

func (s *Server) persistGame(game *Game) error {
	if s.db == nil {
		return nil
	}
	record := db.Game{
		PublicID:        game.ID,
		JoinCode:        game.JoinCode,
		Status:          game.Status,
		InitialCents:    game.InitialCents,
		CurrentCents:    game.CurrentCents,
		MaxTeams:        game.MaxTeams,
		DurationMinutes: game.DurationMinutes,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	game.DBID = record.ID
	return s.persistEvent(game, "game_created", EventPayload{
		GameID:   game.ID,
		JoinCode: game.JoinCode,
	})
}

// persistPlayer inserts the player row. The in-memory nickname check is
// advisory; the unique index on (game_id, nickname) is the authoritative
// arbiter of a join race, and a violation here must be reported as
// nickname-taken so the caller can roll the optimistic insert back.
func (s *Server) persistPlayer(game *Game, player *Player) error {
	if s.db == nil {
		return nil
	}
	if player.DBID != 0 || game.DBID == 0 {
		return nil
	}
	record := db.Player{
		GameID:   game.DBID,
		PublicID: player.ID,
		Nickname: player.Nickname,
		JoinedAt: player.JoinedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return errNicknameTaken
		}
		return err
	}
	player.DBID = record.ID
	return s.persistEvent(game, "player_joined", EventPayload{
		PlayerID: player.ID,
		Nickname: player.Nickname,
	})
}

func (s *Server) persistTeam(game *Game, team *Team) error {
	if s.db == nil {
		return nil
	}
	if team.DBID != 0 || game.DBID == 0 {
		return nil
	}
	record := db.Team{
		GameID:    game.DBID,
		PublicID:  team.ID,
		Name:      team.Name,
		IsChicken: team.IsChicken,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return errTeamNameTaken
		}
		return err
	}
	team.DBID = record.ID
	if team.IsChicken {
		if err := s.db.Model(&db.Game{}).Where("id = ?", game.DBID).
			Update("chicken_team_id", record.ID).Error; err != nil {
			return err
		}
	}
	return s.persistEvent(game, "team_created", EventPayload{
		TeamID:   team.ID,
		TeamName: team.Name,
	})
}

func (s *Server) persistPlayerTeam(game *Game, player *Player) error {
	if s.db == nil {
		return nil
	}
	if player.DBID == 0 {
		return nil
	}
	var teamDBID *uint
	if player.TeamID != 0 {
		if team, ok := game.FindTeam(player.TeamID); ok && team.DBID != 0 {
			teamDBID = &team.DBID
		}
	}
	return s.db.Model(&db.Player{}).Where("id = ?", player.DBID).
		Update("team_id", teamDBID).Error
}

func (s *Server) persistStatus(game *Game) error {
	if s.db == nil {
		return nil
	}
	if game.DBID == 0 {
		return nil
	}
	updates := map[string]any{"status": game.Status}
	if !game.HiddenAt.IsZero() {
		hidden := game.HiddenAt
		updates["hidden_at"] = &hidden
	}
	return s.db.Model(&db.Game{}).Where("id = ?", game.DBID).Updates(updates).Error
}

// persistLedgerEntry re-runs the mutation through the database's atomic
// append. On a single instance the store mutex already serialized it, so the
// balances must agree; a mismatch means some other writer touched the row
// and is worth a loud log line.
func (s *Server) persistLedgerEntry(game *Game, entry *LedgerEntry) error {
	if s.db == nil {
		return nil
	}
	if game.DBID == 0 {
		return nil
	}
	var playerDBID *uint
	if entry.PlayerID != 0 {
		if _, player, ok := s.store.GetPlayer(game.ID, entry.PlayerID); ok && player.DBID != 0 {
			playerDBID = &player.DBID
		}
	}
	result, err := db.AppendTransaction(s.db, game.DBID, entry.ID, entry.Kind, requestAmount(entry), entry.Reason, playerDBID)
	if err != nil {
		return err
	}
	if result.PreviousCents != entry.BalanceBefore || result.NewCents != entry.BalanceAfter {
		log.Printf("ledger drift game_id=%s memory=%d/%d db=%d/%d",
			game.ID, entry.BalanceBefore, entry.BalanceAfter, result.PreviousCents, result.NewCents)
	}
	entry.DBID = result.TransactionID
	return nil
}

// requestAmount recovers the amount as requested: reset entries record the
// audit delta, but the database append recomputes that itself.
func requestAmount(entry *LedgerEntry) int64 {
	if entry.Kind == kindReset {
		return 0
	}
	return entry.AmountCents
}

func (s *Server) persistEvent(game *Game, eventType string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	if game.DBID == 0 {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:  game.DBID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	if payload.PlayerID > 0 {
		if _, player, ok := s.store.GetPlayer(game.ID, payload.PlayerID); ok && player.DBID != 0 {
			event.PlayerID = &player.DBID
		}
	}
	return s.db.Create(&event).Error
}

func (s *Server) persistVenues(game *Game, venues []venue.Venue) error {
	if s.db == nil {
		return nil
	}
	if game.DBID == 0 {
		return nil
	}
	records := make([]db.Venue, 0, len(venues))
	now := time.Now().UTC()
	for _, v := range venues {
		records = append(records, db.Venue{
			GameID:    game.DBID,
			Name:      v.Name,
			Address:   v.Address,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			SourceID:  v.SourceID,
			CreatedAt: now,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

func (s *Server) loadEvents(game *Game, limit int) ([]db.Event, error) {
	if s.db == nil || game.DBID == 0 {
		return nil, nil
	}
	query := s.db.Where("game_id = ?", game.DBID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []db.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
