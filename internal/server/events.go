package server

type EventPayload struct {
	GameID      string `json:"game_id,omitempty"`
	JoinCode    string `json:"join_code,omitempty"`
	PlayerID    int    `json:"player_id,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	TeamID      int    `json:"team_id,omitempty"`
	TeamName    string `json:"team_name,omitempty"`
	Status      string `json:"status,omitempty"`
	Kind        string `json:"kind,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PresetKey   string `json:"preset_key,omitempty"`
	Count       int    `json:"count,omitempty"`
}
