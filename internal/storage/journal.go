package storage

import (
	"context"

	"evm-sniper-bot/internal/domain"
)

// NopJournal is a TradeJournal that records nothing. Used when no
// database is configured.
type NopJournal struct{}

// Record discards the position.
func (NopJournal) Record(context.Context, *domain.Position) error { return nil }

// Recent always returns an empty history.
func (NopJournal) Recent(context.Context, int) ([]*domain.Position, error) { return nil, nil }

var _ TradeJournal = NopJournal{}
