// Package ledger is the position state machine shared by both strategies:
// open, evaluate exit conditions, close, and account for the proceeds.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/idhash"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/internal/storage"
)

var (
	// ErrAlreadyOpen means an active position exists for the token.
	ErrAlreadyOpen = errors.New("active position already open for token")
	// ErrInsufficientBalance means the investment exceeds available funds.
	ErrInsufficientBalance = errors.New("insufficient available balance")
	// ErrInvalidMultipliers means the target/stop multipliers cannot
	// produce target > entry > stop.
	ErrInvalidMultipliers = errors.New("profit multiplier must exceed 1.0 and stop multiplier must be below 1.0")
	// ErrNotActive means the position is already closed.
	ErrNotActive = errors.New("position is not active")
)

// OpenRequest carries everything needed to open a position.
type OpenRequest struct {
	Strategy     domain.StrategyName
	TokenAddress string
	TokenSymbol  string
	EntryPrice   float64 // USD per token
	InvestedUSD  float64
	TargetMult   float64 // e.g. 2.0 doubles
	StopMult     float64 // e.g. 0.7 cuts losses at -30%
	EntryTxHash  string  // empty in dry-run mode
}

// Stats is a read-only accounting snapshot.
type Stats struct {
	AvailableUSD     float64
	RealizedUSD      float64
	TotalTrades      int
	ProfitableTrades int
}

// Ledger owns position lifecycle and the running totals. All methods are
// safe for concurrent use by the strategy loops.
type Ledger struct {
	store   storage.PositionStore
	journal storage.TradeJournal
	dryRun  bool
	log     logrus.FieldLogger
	now     func() time.Time

	mu        sync.Mutex
	available float64
	realized  float64
	trades    int
	wins      int
}

// New creates a ledger with the given starting balance.
func New(store storage.PositionStore, journal storage.TradeJournal, startingBalanceUSD float64, dryRun bool, log logrus.FieldLogger) *Ledger {
	if journal == nil {
		journal = storage.NopJournal{}
	}
	return &Ledger{
		store:     store,
		journal:   journal,
		dryRun:    dryRun,
		log:       log,
		now:       time.Now,
		available: startingBalanceUSD,
	}
}

// WithClock overrides the time source. Test hook.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Open creates an active position, reserving the invested amount from the
// available balance. Exactly one active position may exist per token.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (domain.Position, error) {
	if req.EntryPrice <= 0 || req.InvestedUSD <= 0 {
		return domain.Position{}, fmt.Errorf("%w: entry price and investment must be positive", storage.ErrInvalidInput)
	}
	if req.TargetMult <= 1.0 || req.StopMult >= 1.0 || req.StopMult <= 0 {
		return domain.Position{}, ErrInvalidMultipliers
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if req.InvestedUSD > l.available {
		return domain.Position{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, req.InvestedUSD, l.available)
	}

	openedAt := l.now()
	addr := domain.NormalizeAddress(req.TokenAddress)
	pos := domain.Position{
		ID:           idhash.ComputePositionID(req.Strategy, addr, openedAt),
		Strategy:     req.Strategy,
		TokenAddress: addr,
		TokenSymbol:  req.TokenSymbol,
		EntryPrice:   req.EntryPrice,
		Quantity:     req.InvestedUSD / req.EntryPrice,
		InvestedUSD:  req.InvestedUSD,
		TargetPrice:  req.EntryPrice * req.TargetMult,
		StopPrice:    req.EntryPrice * req.StopMult,
		Status:       domain.PositionActive,
		OpenedAt:     openedAt,
		DryRun:       l.dryRun,
		EntryTxHash:  req.EntryTxHash,
	}

	if err := l.store.Insert(ctx, &pos); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return domain.Position{}, ErrAlreadyOpen
		}
		return domain.Position{}, fmt.Errorf("insert position: %w", err)
	}

	l.available -= req.InvestedUSD
	l.trades++
	observability.RecordPositionOpened(string(req.Strategy))

	l.log.WithFields(logrus.Fields{
		"strategy": req.Strategy,
		"token":    addr,
		"symbol":   req.TokenSymbol,
		"entry":    req.EntryPrice,
		"target":   pos.TargetPrice,
		"stop":     pos.StopPrice,
		"invested": req.InvestedUSD,
		"dry_run":  l.dryRun,
	}).Info("position opened")
	return pos, nil
}

// EvaluateExit decides whether a position should close at the current
// price. Profit is checked before loss, loss before timeout: when a price
// satisfies several rules at once the most favorable reading wins.
func (l *Ledger) EvaluateExit(pos domain.Position, currentPrice float64, maxHold time.Duration) (domain.ExitReason, bool) {
	switch {
	case currentPrice >= pos.TargetPrice:
		return domain.ExitProfitTarget, true
	case currentPrice <= pos.StopPrice:
		return domain.ExitStopLoss, true
	case pos.HeldFor(l.now()) > maxHold:
		return domain.ExitTimeout, true
	}
	return "", false
}

// Close moves an active position to its terminal state and credits the
// proceeds back to the available balance. Returns the realized pnl.
func (l *Ledger) Close(ctx context.Context, pos domain.Position, reason domain.ExitReason, exitPrice float64, exitTxHash string) (float64, error) {
	if pos.Status != domain.PositionActive {
		return 0, ErrNotActive
	}

	pnl := pos.UnrealizedPnL(exitPrice)
	closedAt := l.now()

	pos.Status = reason.Status(pnl)
	pos.ClosedAt = &closedAt
	pos.ExitPrice = &exitPrice
	pos.ExitReason = &reason
	pos.PnLUSD = &pnl
	pos.ExitTxHash = exitTxHash

	if err := l.store.Update(ctx, &pos); err != nil {
		return 0, fmt.Errorf("update position: %w", err)
	}

	l.mu.Lock()
	l.available += pos.InvestedUSD + pnl
	l.realized += pnl
	if pnl > 0 {
		l.wins++
	}
	l.mu.Unlock()

	observability.RecordPositionClosed(string(pos.Strategy), pos.Status.String())
	observability.SetRealizedPnL(l.Snapshot().RealizedUSD)

	// Journal failures are logged, never allowed to block trading.
	if err := l.journal.Record(ctx, &pos); err != nil {
		l.log.WithField("position", pos.ID).WithError(err).Warn("trade journal write failed")
	}

	l.log.WithFields(logrus.Fields{
		"strategy": pos.Strategy,
		"token":    pos.TokenAddress,
		"symbol":   pos.TokenSymbol,
		"reason":   reason,
		"entry":    pos.EntryPrice,
		"exit":     exitPrice,
		"pnl_usd":  pnl,
	}).Info("position closed")
	return pnl, nil
}

// Snapshot returns the current accounting totals.
func (l *Ledger) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		AvailableUSD:     l.available,
		RealizedUSD:      l.realized,
		TotalTrades:      l.trades,
		ProfitableTrades: l.wins,
	}
}

// AvailableUSD returns the uninvested balance.
func (l *Ledger) AvailableUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available
}

// ReinvestProfit moves fraction of the accumulated realized profit into
// the available balance once the profit exceeds threshold. Returns the
// amount moved, zero when below threshold.
func (l *Ledger) ReinvestProfit(threshold, fraction float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.realized <= threshold {
		return 0
	}
	amount := l.realized * fraction
	l.available += amount
	l.realized -= amount
	l.log.WithFields(logrus.Fields{
		"reinvested_usd":   amount,
		"remaining_profit": l.realized,
	}).Info("profit reinvested")
	return amount
}

// ActivePositions lists the currently open positions for a strategy.
func (l *Ledger) ActivePositions(ctx context.Context, strategy domain.StrategyName) ([]domain.Position, error) {
	all, err := l.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Position
	for _, p := range all {
		if p.Strategy == strategy {
			out = append(out, *p)
		}
	}
	return out, nil
}

// ActiveByToken returns the active position for a token, if any.
func (l *Ledger) ActiveByToken(ctx context.Context, tokenAddress string) (domain.Position, bool, error) {
	pos, err := l.store.GetActiveByToken(ctx, domain.NormalizeAddress(tokenAddress))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Position{}, false, nil
		}
		return domain.Position{}, false, err
	}
	return *pos, true, nil
}

// TotalInvested sums the capital committed to active positions of a
// strategy. The sniper uses this for its aggregate exposure cap.
func (l *Ledger) TotalInvested(ctx context.Context, strategy domain.StrategyName) (float64, error) {
	active, err := l.ActivePositions(ctx, strategy)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range active {
		total += p.InvestedUSD
	}
	return total, nil
}

// DryRun reports whether the ledger simulates execution.
func (l *Ledger) DryRun() bool { return l.dryRun }
