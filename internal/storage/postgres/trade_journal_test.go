package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/storage"
)

func closedPosition(id string, closedAt time.Time) *domain.Position {
	exit := 200.0
	pnl := 100.0
	reason := domain.ExitProfitTarget
	return &domain.Position{
		ID:           id,
		Strategy:     domain.StrategySniper,
		TokenAddress: "0x1111111111111111111111111111111111111111",
		TokenSymbol:  "TEST",
		EntryPrice:   100,
		Quantity:     1,
		InvestedUSD:  100,
		TargetPrice:  200,
		StopPrice:    70,
		Status:       domain.PositionClosedProfit,
		ExitReason:   &reason,
		ExitPrice:    &exit,
		PnLUSD:       &pnl,
		OpenedAt:     closedAt.Add(-time.Hour),
		ClosedAt:     &closedAt,
		DryRun:       true,
	}
}

func TestTradeJournal_RecordAndRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewTradeJournal(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, journal.Record(ctx, closedPosition("pos-1", base)))
	require.NoError(t, journal.Record(ctx, closedPosition("pos-2", base.Add(time.Hour))))

	got, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "pos-2", got[0].ID)
	assert.Equal(t, "pos-1", got[1].ID)
	assert.Equal(t, domain.PositionClosedProfit, got[0].Status)
	require.NotNil(t, got[0].PnLUSD)
	assert.Equal(t, 100.0, *got[0].PnLUSD)
	require.NotNil(t, got[0].ExitReason)
	assert.Equal(t, domain.ExitProfitTarget, *got[0].ExitReason)
}

func TestTradeJournal_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewTradeJournal(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, journal.Record(ctx, closedPosition("pos-1", base)))
	err := journal.Record(ctx, closedPosition("pos-1", base))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeJournal_RejectsActivePosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewTradeJournal(pool)

	p := closedPosition("pos-1", time.Now().UTC())
	p.Status = domain.PositionActive
	err := journal.Record(context.Background(), p)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
