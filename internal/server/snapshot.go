package server

import "time"

// Wire shapes. Change-event rows and the full snapshot must agree so that a
// client merge keyed on "id" works regardless of which path delivered the
// record. The notify triggers in db/migrations emit the same shapes.

func rowGame(game *Game) map[string]any {
	row := map[string]any{
		"id":               game.ID,
		"join_code":        game.JoinCode,
		"status":           game.Status,
		"initial_cents":    game.InitialCents,
		"current_cents":    game.CurrentCents,
		"max_teams":        game.MaxTeams,
		"duration_minutes": game.DurationMinutes,
		"chicken_team_id":  game.ChickenTeamID,
		"created_at":       game.CreatedAt.Format(time.RFC3339),
	}
	if !game.HiddenAt.IsZero() {
		row["hidden_at"] = game.HiddenAt.Format(time.RFC3339)
	}
	return row
}

func rowTeam(team *Team) map[string]any {
	return map[string]any{
		"id":         team.ID,
		"name":       team.Name,
		"is_chicken": team.IsChicken,
	}
}

func rowPlayer(player *Player) map[string]any {
	return map[string]any{
		"id":        player.ID,
		"nickname":  player.Nickname,
		"team_id":   player.TeamID,
		"joined_at": player.JoinedAt.Format(time.RFC3339),
	}
}

func rowLedgerEntry(entry *LedgerEntry) map[string]any {
	return map[string]any{
		"id":             entry.ID,
		"kind":           entry.Kind,
		"amount_cents":   entry.AmountCents,
		"balance_before": entry.BalanceBefore,
		"balance_after":  entry.BalanceAfter,
		"reason":         entry.Reason,
		"player_id":      entry.PlayerID,
		"created_at":     entry.CreatedAt.Format(time.RFC3339),
	}
}

func snapshot(game *Game) map[string]any {
	teams := make([]map[string]any, 0, len(game.Teams))
	for i := range game.Teams {
		teams = append(teams, rowTeam(&game.Teams[i]))
	}
	players := make([]map[string]any, 0, len(game.Players))
	for i := range game.Players {
		players = append(players, rowPlayer(&game.Players[i]))
	}
	return map[string]any{
		"game":    rowGame(game),
		"teams":   teams,
		"players": players,
		"ledger":  ledgerStatsPayload(game),
	}
}

// statusPayload is the light reconciliation shape the poller re-fetches.
func statusPayload(game *Game) map[string]any {
	payload := map[string]any{
		"id":              game.ID,
		"status":          game.Status,
		"chicken_team_id": game.ChickenTeamID,
		"current_cents":   game.CurrentCents,
	}
	if !game.HiddenAt.IsZero() {
		payload["hidden_at"] = game.HiddenAt.Format(time.RFC3339)
	}
	return payload
}

func ledgerStatsPayload(game *Game) map[string]any {
	perKind := make(map[string]int64)
	for i := range game.Ledger {
		perKind[game.Ledger[i].Kind] += game.Ledger[i].AmountCents
	}
	return map[string]any{
		"current_cents":     game.CurrentCents,
		"initial_cents":     game.InitialCents,
		"net_change_cents":  game.CurrentCents - game.InitialCents,
		"per_kind_totals":   perKind,
		"transaction_count": len(game.Ledger),
	}
}
