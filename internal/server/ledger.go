package server

import (
	"errors"
	"fmt"
	"log"
)

var (
	errNegativeAmount      = errors.New("amount must not be negative")
	errUnknownKind         = errors.New("unknown ledger operation kind")
	errInsufficientBalance = errors.New("cannot subtract more than the current balance")
	errUnknownPreset       = errors.New("unknown preset key")
)

type OperationResult struct {
	PreviousCents int64
	NewCents      int64
	TransactionID int
}

// ExecuteOperation validates and applies one pooled-fund mutation. The
// balance check and the append happen inside one store mutation, so two
// concurrent subtracts can never both observe the same stale balance; a
// rejection writes nothing.
func (s *Server) ExecuteOperation(gameID, kind string, amountCents int64, playerID int, reason string) (*Game, *OperationResult, error) {
	switch kind {
	case kindAdd, kindSubtract, kindSet, kindReset:
	default:
		ledgerOperationsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, nil, errUnknownKind
	}
	if amountCents < 0 {
		ledgerOperationsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, nil, errNegativeAmount
	}

	// The entry copy and the wire rows are captured inside the store
	// mutation; the live *Game and its ledger slice must not be read once
	// the mutex is released.
	var (
		entry    LedgerEntry
		snap     Game
		entryRow map[string]any
		gameRow  map[string]any
	)
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if game.Status == statusFinished {
			return errGameFinished
		}
		applied, applyErr := applyLedger(game, kind, amountCents, playerID, reason)
		if applyErr != nil {
			return applyErr
		}
		entry = *applied
		snap = *game
		entryRow = rowLedgerEntry(applied)
		gameRow = rowGame(game)
		return nil
	})
	if err != nil {
		ledgerOperationsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, nil, err
	}
	ledgerOperationsTotal.WithLabelValues(kind, "accepted").Inc()
	game := &snap

	if err := s.persistLedgerEntry(game, &entry); err != nil {
		log.Printf("persist ledger entry failed game_id=%s kind=%s error=%v", game.ID, kind, err)
	}
	if err := s.persistEvent(game, "ledger_operation", EventPayload{
		Kind:        kind,
		AmountCents: entry.AmountCents,
		PlayerID:    playerID,
		Reason:      reason,
	}); err != nil {
		log.Printf("persist event failed game_id=%s type=ledger_operation error=%v", game.ID, err)
	}
	log.Printf("ledger operation game_id=%s kind=%s amount_cents=%d balance_cents=%d", game.ID, kind, entry.AmountCents, entry.BalanceAfter)

	s.publishLedgerInsert(game.ID, entryRow)
	s.publishGameUpdate(game.ID, gameRow)

	return game, &OperationResult{
		PreviousCents: entry.BalanceBefore,
		NewCents:      entry.BalanceAfter,
		TransactionID: entry.ID,
	}, nil
}

// ExecutePreset resolves a named preset from the configured table and runs
// it. The table is configuration; adding a preset never touches this code.
func (s *Server) ExecutePreset(gameID, presetKey string, playerID int) (*Game, *OperationResult, error) {
	preset, ok := s.cfg.Presets[presetKey]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errUnknownPreset, presetKey)
	}
	return s.ExecuteOperation(gameID, preset.Kind, preset.AmountCents, playerID, "preset "+presetKey)
}

// applyLedger runs under the store mutex. The entry id is the position in
// the append-only log, which is stable because entries are never removed.
func applyLedger(game *Game, kind string, amountCents int64, playerID int, reason string) (*LedgerEntry, error) {
	previous := game.CurrentCents
	next := previous
	recorded := amountCents
	switch kind {
	case kindAdd:
		next = previous + amountCents
	case kindSubtract:
		if amountCents > previous {
			return nil, errInsufficientBalance
		}
		next = previous - amountCents
	case kindSet:
		next = amountCents
	case kindReset:
		next = game.InitialCents
		recorded = next - previous
		if recorded < 0 {
			recorded = -recorded
		}
	}

	entry := LedgerEntry{
		ID:            len(game.Ledger) + 1,
		Kind:          kind,
		AmountCents:   recorded,
		BalanceBefore: previous,
		BalanceAfter:  next,
		Reason:        reason,
		PlayerID:      playerID,
		CreatedAt:     timeNowUTC(),
	}
	game.Ledger = append(game.Ledger, entry)
	game.CurrentCents = next
	return &game.Ledger[len(game.Ledger)-1], nil
}

// ledgerHistory returns up to limit entries, most recent first.
func ledgerHistory(game *Game, limit int) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(game.Ledger))
	for i := len(game.Ledger) - 1; i >= 0; i-- {
		entries = append(entries, game.Ledger[i])
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries
}
