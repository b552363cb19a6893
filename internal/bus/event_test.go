package bus

import "testing"

func TestDecodeNotification(t *testing.T) {
	payload := []byte(`{
		"table": "ledger_transactions",
		"type": "INSERT",
		"game_id": "game-7",
		"row": {"id": 3, "kind": "subtract", "amount_cents": 1000, "balance_after": 4000}
	}`)

	event, err := DecodeNotification(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Table != TableLedger || event.Type != EventInsert || event.GameID != "game-7" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Row["kind"] != "subtract" {
		t.Fatalf("expected row kind subtract, got %v", event.Row["kind"])
	}
}

func TestDecodeNotificationRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":    `{"table": "games"`,
		"unknown table":   `{"table": "secrets", "type": "INSERT", "game_id": "game-1"}`,
		"unknown type":    `{"table": "games", "type": "TRUNCATE", "game_id": "game-1"}`,
		"missing game id": `{"table": "games", "type": "INSERT"}`,
	}
	for name, payload := range cases {
		if _, err := DecodeNotification([]byte(payload)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
