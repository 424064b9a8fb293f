package memory

import (
	"context"
	"sort"
	"sync"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position ID
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if the ID exists or
// the token already has an active position.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if p.Status == domain.PositionActive {
		for _, existing := range s.data {
			if existing.Status == domain.PositionActive && existing.TokenAddress == p.TokenAddress {
				return storage.ErrDuplicateKey
			}
		}
	}

	// Store a copy to prevent external mutation
	positionCopy := *p
	s.data[p.ID] = &positionCopy
	return nil
}

// Update replaces an existing position. Returns ErrNotFound if the ID
// does not exist.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; !exists {
		return storage.ErrNotFound
	}

	positionCopy := *p
	s.data[p.ID] = &positionCopy
	return nil
}

// GetByID retrieves a position by ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	positionCopy := *p
	return &positionCopy, nil
}

// GetActiveByToken retrieves the active position for a token, if any.
func (s *PositionStore) GetActiveByToken(_ context.Context, tokenAddress string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.Status == domain.PositionActive && p.TokenAddress == tokenAddress {
			positionCopy := *p
			return &positionCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListActive retrieves all active positions, ordered by OpenedAt ASC.
func (s *PositionStore) ListActive(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.Status == domain.PositionActive {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.Before(result[j].OpenedAt)
	})
	return result, nil
}

// ListByStrategy retrieves all positions owned by a strategy, ordered by
// OpenedAt ASC.
func (s *PositionStore) ListByStrategy(_ context.Context, strategy domain.StrategyName) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.Strategy == strategy {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.Before(result[j].OpenedAt)
	})
	return result, nil
}

// ListClosed retrieves all closed positions, ordered by ClosedAt ASC.
func (s *PositionStore) ListClosed(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.Status.IsTerminal() {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ClosedAt == nil || result[j].ClosedAt == nil {
			return result[i].OpenedAt.Before(result[j].OpenedAt)
		}
		return result[i].ClosedAt.Before(*result[j].ClosedAt)
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PositionStore = (*PositionStore)(nil)
