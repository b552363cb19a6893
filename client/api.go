package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type snapshotPayload struct {
	Game    Game        `json:"game"`
	Teams   []Team      `json:"teams"`
	Players []Player    `json:"players"`
	Ledger  LedgerStats `json:"ledger"`
}

type statusPayload struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ChickenTeamID int    `json:"chicken_team_id"`
	CurrentCents  int64  `json:"current_cents"`
}

func (e *Engine) fetchSnapshot(ctx context.Context) (*snapshotPayload, error) {
	var payload snapshotPayload
	if err := e.getJSON(ctx, fmt.Sprintf("%s/api/games/%s", e.cfg.BaseURL, e.cfg.GameID), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (e *Engine) fetchStatus(ctx context.Context) (*statusPayload, error) {
	var payload statusPayload
	if err := e.getJSON(ctx, fmt.Sprintf("%s/api/games/%s/status", e.cfg.BaseURL, e.cfg.GameID), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (e *Engine) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
