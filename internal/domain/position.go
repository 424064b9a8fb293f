package domain

import "time"

// PositionStatus is the lifecycle state of a position. A position is
// created active and moves to exactly one terminal closed state.
type PositionStatus string

const (
	PositionActive        PositionStatus = "active"
	PositionClosedProfit  PositionStatus = "closed_profit"
	PositionClosedLoss    PositionStatus = "closed_loss"
	PositionClosedTimeout PositionStatus = "closed_timeout"
)

// String returns the string representation of PositionStatus.
func (s PositionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s PositionStatus) IsValid() bool {
	switch s {
	case PositionActive, PositionClosedProfit, PositionClosedLoss, PositionClosedTimeout:
		return true
	}
	return false
}

// IsTerminal reports whether the status is one of the closed states.
func (s PositionStatus) IsTerminal() bool {
	return s.IsValid() && s != PositionActive
}

// ExitReason identifies which rule closed a position.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTimeout      ExitReason = "timeout"
	ExitManual       ExitReason = "manual"
)

// Status returns the terminal status a close with this reason produces.
// Manual closes carry no rule of their own and are bucketed by the
// realized outcome.
func (r ExitReason) Status(pnl float64) PositionStatus {
	switch r {
	case ExitProfitTarget:
		return PositionClosedProfit
	case ExitStopLoss:
		return PositionClosedLoss
	case ExitManual:
		if pnl < 0 {
			return PositionClosedLoss
		}
		return PositionClosedProfit
	default:
		return PositionClosedTimeout
	}
}

// StrategyName tags which strategy owns a position.
type StrategyName string

const (
	StrategySniper StrategyName = "sniper"
	StrategySwing  StrategyName = "swing"
)

// Position is a single open or closed trade.
type Position struct {
	ID           string       // unique position identifier
	Strategy     StrategyName // owning strategy
	TokenAddress string       // normalized token address
	TokenSymbol  string
	EntryPrice   float64 // unit price at open, in USD
	Quantity     float64 // token amount held
	InvestedUSD  float64 // capital committed at open
	TargetPrice  float64 // entry * profit target multiplier
	StopPrice    float64 // entry * stop loss multiplier
	Status       PositionStatus
	OpenedAt     time.Time
	ClosedAt     *time.Time // nil while active
	ExitPrice    *float64   // nil while active
	ExitReason   *ExitReason
	PnLUSD       *float64 // realized profit and loss, nil while active
	DryRun       bool     // position was opened without on-chain execution
	EntryTxHash  string   // empty in dry-run mode
	ExitTxHash   string
}

// UnrealizedPnL returns the mark-to-market profit at the given price.
// For a closed position it reflects the hypothetical value, not the
// realized PnLUSD.
func (p Position) UnrealizedPnL(currentPrice float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return p.InvestedUSD * (currentPrice - p.EntryPrice) / p.EntryPrice
}

// HeldFor returns how long the position has been open at the given time.
func (p Position) HeldFor(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
