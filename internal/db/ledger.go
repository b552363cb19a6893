package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	KindAdd      = "add"
	KindSubtract = "subtract"
	KindSet      = "set"
	KindReset    = "reset"
)

var (
	ErrInsufficientBalance = errors.New("cannot subtract more than the current balance")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrUnknownKind         = errors.New("unknown ledger operation kind")
	ErrGameNotFound        = errors.New("game not found")

	// errBalanceConflict signals a lost compare-and-set race; the append
	// retries with a fresh read.
	errBalanceConflict = errors.New("balance changed concurrently")
)

const appendRetries = 5

type AppendResult struct {
	PreviousCents int64
	NewCents      int64
	TransactionID uint
}

// AppendTransaction records one pooled-fund mutation. The balance change is
// computed from the authoritative games row and applied with a conditional
// update inside one transaction, so two concurrent subtracts can never both
// read the same stale balance. Rejections (insufficient balance) write
// nothing.
func AppendTransaction(conn *gorm.DB, gameID uint, publicID int, kind string, amountCents int64, reason string, playerID *uint) (*AppendResult, error) {
	if amountCents < 0 {
		return nil, ErrNegativeAmount
	}
	switch kind {
	case KindAdd, KindSubtract, KindSet, KindReset:
	default:
		return nil, ErrUnknownKind
	}

	var result *AppendResult
	for attempt := 0; attempt < appendRetries; attempt++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			res, err := appendOnce(tx, gameID, publicID, kind, amountCents, reason, playerID)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
		if errors.Is(err, errBalanceConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("ledger append for game %d: %w", gameID, errBalanceConflict)
}

func appendOnce(tx *gorm.DB, gameID uint, publicID int, kind string, amountCents int64, reason string, playerID *uint) (*AppendResult, error) {
	var game Game
	if err := tx.Select("id", "initial_cents", "current_cents").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	previous := game.CurrentCents
	next := previous
	recorded := amountCents
	switch kind {
	case KindAdd:
		next = previous + amountCents
	case KindSubtract:
		if amountCents > previous {
			return nil, ErrInsufficientBalance
		}
		next = previous - amountCents
	case KindSet:
		next = amountCents
	case KindReset:
		next = game.InitialCents
		recorded = next - previous
		if recorded < 0 {
			recorded = -recorded
		}
	}

	update := tx.Model(&Game{}).
		Where("id = ? AND current_cents = ?", gameID, previous).
		Update("current_cents", next)
	if update.Error != nil {
		return nil, update.Error
	}
	if update.RowsAffected == 0 {
		return nil, errBalanceConflict
	}

	record := LedgerTransaction{
		GameID:        gameID,
		PublicID:      publicID,
		Kind:          kind,
		AmountCents:   recorded,
		BalanceBefore: previous,
		BalanceAfter:  next,
		Reason:        reason,
		PlayerID:      playerID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &AppendResult{
		PreviousCents: previous,
		NewCents:      next,
		TransactionID: record.ID,
	}, nil
}

// LedgerHistory returns transactions for a game, most recent first.
func LedgerHistory(conn *gorm.DB, gameID uint, limit int) ([]LedgerTransaction, error) {
	query := conn.Where("game_id = ?", gameID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []LedgerTransaction
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

type LedgerStats struct {
	CurrentCents     int64
	InitialCents     int64
	NetChangeCents   int64
	PerKindTotals    map[string]int64
	TransactionCount int
}

// Stats derives the ledger aggregates for a game purely from the full
// transaction log plus the game's initial balance.
func Stats(conn *gorm.DB, gameID uint) (*LedgerStats, error) {
	var game Game
	if err := conn.Select("id", "initial_cents").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	history, err := LedgerHistory(conn, gameID, 0)
	if err != nil {
		return nil, err
	}
	stats := StatsFromHistory(game.InitialCents, history)
	return &stats, nil
}

// StatsFromHistory is the pure aggregate underlying Stats. The history is
// expected most recent first, as returned by LedgerHistory.
func StatsFromHistory(initialCents int64, history []LedgerTransaction) LedgerStats {
	stats := LedgerStats{
		CurrentCents:  initialCents,
		InitialCents:  initialCents,
		PerKindTotals: make(map[string]int64),
	}
	if len(history) > 0 {
		stats.CurrentCents = history[0].BalanceAfter
	}
	for _, record := range history {
		stats.PerKindTotals[record.Kind] += record.AmountCents
		stats.TransactionCount++
	}
	stats.NetChangeCents = stats.CurrentCents - stats.InitialCents
	return stats
}
