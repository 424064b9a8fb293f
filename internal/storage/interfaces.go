package storage

import (
	"context"

	"evm-sniper-bot/internal/domain"
)

// PositionStore provides access to position storage. The store is the
// single source of truth for which positions are active; strategy loops
// read and mutate positions only through it.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the ID
	// exists, or if an active position for the same token already exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces an existing position. Returns ErrNotFound if the
	// ID does not exist.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetActiveByToken retrieves the active position for a token, if any.
	// Returns ErrNotFound when the token has no active position.
	GetActiveByToken(ctx context.Context, tokenAddress string) (*domain.Position, error)

	// ListActive retrieves all active positions, ordered by OpenedAt ASC.
	ListActive(ctx context.Context) ([]*domain.Position, error)

	// ListByStrategy retrieves all positions owned by a strategy,
	// ordered by OpenedAt ASC.
	ListByStrategy(ctx context.Context, strategy domain.StrategyName) ([]*domain.Position, error)

	// ListClosed retrieves all closed positions, ordered by ClosedAt ASC.
	ListClosed(ctx context.Context) ([]*domain.Position, error)
}

// TradeJournal records closed positions for offline analysis. It is an
// append-only sink: journal failures must never block trading, callers
// log and continue.
type TradeJournal interface {
	// Record appends a closed position to the journal.
	Record(ctx context.Context, p *domain.Position) error

	// Recent retrieves the most recently closed positions, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Position, error)
}
