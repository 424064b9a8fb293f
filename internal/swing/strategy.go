package swing

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/dex"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/ledger"
	"evm-sniper-bot/internal/notify"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/internal/pricing"
)

// Deps are the strategy's collaborators.
type Deps struct {
	Oracle   *pricing.Oracle
	Ledger   *ledger.Ledger
	Executor dex.Executor
	Notifier notify.Notifier
	Log      logrus.FieldLogger
}

// Performance is a snapshot of the strategy's portfolio health.
type Performance struct {
	PortfolioValueUSD float64
	PeakValueUSD      float64
	MaxDrawdown       float64 // worst peak-to-trough fraction, monotonic
	AvailableUSD      float64
	RealizedUSD       float64
	TotalTrades       int
	ProfitableTrades  int
	WinRate           float64
}

// Strategy is the altcoin swing trader.
type Strategy struct {
	cfg     config.SwingConfig
	deps    Deps
	history *HistoryBook
	now     func() time.Time

	mu          sync.Mutex
	peakValue   float64
	maxDrawdown float64
	lastValue   float64
}

// New creates the swing strategy over the configured token universe.
func New(cfg config.SwingConfig, deps Deps) *Strategy {
	return &Strategy{
		cfg:     cfg,
		deps:    deps,
		history: NewHistoryBook(cfg.HistoryWindow),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Strategy) WithClock(now func() time.Time) *Strategy {
	s.now = now
	return s
}

// PollPrices samples the universe into the rolling history until ctx is
// done.
func (s *Strategy) PollPrices(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Strategy) pollOnce(ctx context.Context) {
	for _, token := range s.cfg.Universe {
		price, ok := s.deps.Oracle.TokenPriceUSD(ctx, token.Address)
		if !ok {
			s.deps.Log.WithField("symbol", token.Symbol).Debug("price sample missed")
			continue
		}
		s.history.Append(domain.NormalizeAddress(token.Address), price, 0, s.now())
	}
}

// RunSignals periodically evaluates indicators over the history and acts
// on strong signals.
func (s *Strategy) RunSignals(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SignalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.signalPass(ctx)
		}
	}
}

func (s *Strategy) signalPass(ctx context.Context) {
	for _, token := range s.cfg.Universe {
		addr := domain.NormalizeAddress(token.Address)
		signal, err := GenerateSignal(token, s.history.Prices(addr), s.cfg.MinSamples, s.cfg.IndicatorWeights, s.now())
		if err != nil {
			continue
		}

		log := s.deps.Log.WithFields(logrus.Fields{
			"symbol":    token.Symbol,
			"direction": signal.Direction.String(),
			"strength":  signal.Strength,
			"rsi":       signal.RSI,
		})
		if signal.Strength < s.cfg.MinStrength || signal.Direction == domain.SignalHold {
			log.Debug("signal below action threshold")
			continue
		}
		log.Info("actionable signal")

		switch signal.Direction {
		case domain.SignalBuy:
			s.enterPosition(ctx, token, signal)
		case domain.SignalSell:
			s.exitOnSignal(ctx, addr, token.Symbol)
		}
	}
}

// enterPosition sizes and opens a position on a buy signal. Tokens with
// an active position are left alone.
func (s *Strategy) enterPosition(ctx context.Context, token config.SwingToken, signal domain.Signal) {
	addr := domain.NormalizeAddress(token.Address)
	log := s.deps.Log.WithField("symbol", token.Symbol)

	if _, active, err := s.deps.Ledger.ActiveByToken(ctx, addr); err != nil || active {
		return
	}

	investment := s.deps.Ledger.AvailableUSD() * s.cfg.MaxPositionFraction
	if investment > s.cfg.MaxInvestmentUSD {
		investment = s.cfg.MaxInvestmentUSD
	}
	if investment < s.cfg.MinTicketUSD {
		log.WithField("investment", investment).Debug("ticket below minimum, skipping")
		return
	}

	price, ok := s.deps.Oracle.TokenPriceUSD(ctx, addr)
	if !ok || price <= 0 {
		return
	}
	ethUSD := s.deps.Oracle.ETHPriceUSD(ctx)
	amountWei, _ := new(big.Float).Mul(
		big.NewFloat(investment/ethUSD), big.NewFloat(1e18),
	).Int(nil)

	result := s.deps.Executor.BuyToken(ctx, addr, amountWei)
	if !result.Success {
		log.WithField("error", result.Err).Warn("swing buy failed")
		return
	}

	pos, err := s.deps.Ledger.Open(ctx, ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  token.Symbol,
		EntryPrice:   price,
		InvestedUSD:  investment,
		TargetMult:   s.cfg.ProfitTarget,
		StopMult:     s.cfg.StopLoss,
		EntryTxHash:  result.TxHash,
	})
	if err != nil {
		log.WithError(err).Warn("swing position not opened")
		return
	}

	log.WithFields(logrus.Fields{
		"entry":    pos.EntryPrice,
		"invested": investment,
		"strength": signal.Strength,
	}).Info("swing position opened")
	s.deps.Notifier.Notify(notify.CategoryPosition,
		fmt.Sprintf("Swing buy %s at $%.4f for $%.2f", token.Symbol, price, investment))
}

// exitOnSignal closes the token's active position on a sell signal,
// regardless of the exit band.
func (s *Strategy) exitOnSignal(ctx context.Context, addr, symbol string) {
	pos, active, err := s.deps.Ledger.ActiveByToken(ctx, addr)
	if err != nil || !active {
		return
	}
	price, ok := s.deps.Oracle.TokenPriceUSD(ctx, addr)
	if !ok {
		return
	}
	s.closePosition(ctx, pos, domain.ExitManual, price)
	s.deps.Log.WithField("symbol", symbol).Info("position closed on sell signal")
}

// MonitorPositions polls active swing positions against the exit rules.
func (s *Strategy) MonitorPositions(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkPositions(ctx)
		}
	}
}

func (s *Strategy) checkPositions(ctx context.Context) {
	active, err := s.deps.Ledger.ActivePositions(ctx, domain.StrategySwing)
	if err != nil {
		s.deps.Log.WithError(err).Warn("listing active positions failed")
		return
	}
	observability.SetActivePositions(string(domain.StrategySwing), len(active))

	for _, pos := range active {
		price, ok := s.deps.Oracle.TokenPriceUSD(ctx, pos.TokenAddress)
		if !ok {
			continue
		}
		reason, exit := s.deps.Ledger.EvaluateExit(pos, price, s.cfg.MaxHold)
		if !exit {
			continue
		}
		s.closePosition(ctx, pos, reason, price)
	}
}

func (s *Strategy) closePosition(ctx context.Context, pos domain.Position, reason domain.ExitReason, price float64) {
	log := s.deps.Log.WithFields(logrus.Fields{
		"symbol": pos.TokenSymbol,
		"reason": string(reason),
	})

	amountTokens, _ := new(big.Float).Mul(
		big.NewFloat(pos.Quantity), big.NewFloat(1e18),
	).Int(nil)
	result := s.deps.Executor.SellToken(ctx, pos.TokenAddress, amountTokens)
	if !result.Success {
		log.WithField("error", result.Err).Warn("swing sell failed, will retry")
		return
	}

	pnl, err := s.deps.Ledger.Close(ctx, pos, reason, price, result.TxHash)
	if err != nil {
		log.WithError(err).Error("closing position failed after successful sell")
		return
	}
	s.deps.Notifier.Notify(notify.CategoryPosition,
		fmt.Sprintf("Swing close %s (%s): pnl $%.2f", pos.TokenSymbol, reason, pnl))
}

// Rebalance periodically marks the portfolio to market, tracks drawdown
// and reinvests accumulated profit.
func (s *Strategy) Rebalance(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RebalanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rebalanceOnce(ctx)
		}
	}
}

func (s *Strategy) rebalanceOnce(ctx context.Context) {
	value := s.portfolioValue(ctx)
	observability.SetPortfolioValue(value)

	s.mu.Lock()
	if value > s.peakValue {
		s.peakValue = value
	}
	if s.peakValue > 0 {
		drawdown := (s.peakValue - value) / s.peakValue
		if drawdown > s.maxDrawdown {
			s.maxDrawdown = drawdown
		}
	}
	s.lastValue = value
	peak, drawdown := s.peakValue, s.maxDrawdown
	s.mu.Unlock()

	moved := s.deps.Ledger.ReinvestProfit(s.cfg.ReinvestThreshold, s.cfg.ReinvestFraction)
	if moved > 0 {
		s.deps.Notifier.Notify(notify.CategorySystem,
			fmt.Sprintf("Reinvested $%.2f of realized profit", moved))
	}

	s.deps.Log.WithFields(logrus.Fields{
		"value":        value,
		"peak":         peak,
		"max_drawdown": drawdown,
		"reinvested":   moved,
	}).Info("portfolio rebalanced")
}

// portfolioValue is the available balance plus the mark-to-market value
// of all active positions, across strategies.
func (s *Strategy) portfolioValue(ctx context.Context) float64 {
	value := s.deps.Ledger.AvailableUSD()
	for _, strategy := range []domain.StrategyName{domain.StrategySniper, domain.StrategySwing} {
		active, err := s.deps.Ledger.ActivePositions(ctx, strategy)
		if err != nil {
			continue
		}
		for _, pos := range active {
			price, ok := s.deps.Oracle.TokenPriceUSD(ctx, pos.TokenAddress)
			if !ok {
				// No quote: carry the position at cost.
				value += pos.InvestedUSD
				continue
			}
			value += pos.Quantity * price
		}
	}
	return value
}

// Performance returns the portfolio snapshot as of the last rebalance.
func (s *Strategy) Performance() Performance {
	stats := s.deps.Ledger.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	perf := Performance{
		PortfolioValueUSD: s.lastValue,
		PeakValueUSD:      s.peakValue,
		MaxDrawdown:       s.maxDrawdown,
		AvailableUSD:      stats.AvailableUSD,
		RealizedUSD:       stats.RealizedUSD,
		TotalTrades:       stats.TotalTrades,
		ProfitableTrades:  stats.ProfitableTrades,
	}
	if stats.TotalTrades > 0 {
		perf.WinRate = float64(stats.ProfitableTrades) / float64(stats.TotalTrades)
	}
	return perf
}
