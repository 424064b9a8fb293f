package swing

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/ledger"
	"evm-sniper-bot/internal/notify"
	"evm-sniper-bot/internal/pricing"
	"evm-sniper-bot/internal/storage/memory"
	"evm-sniper-bot/pkg/logger"
)

// mutableDex lets a test move the market between passes.
type mutableDex struct {
	mu    sync.Mutex
	price float64
}

func (d *mutableDex) Name() string { return "mutable" }

func (d *mutableDex) TokenPriceETH(context.Context, string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.price, nil
}

func (d *mutableDex) set(price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.price = price
}

type fixedFiat struct{ usd float64 }

func (f fixedFiat) Name() string { return "fixed" }

func (f fixedFiat) ETHPriceUSD(context.Context) (float64, error) { return f.usd, nil }

type stubExecutor struct {
	mu    sync.Mutex
	buys  int
	sells int
	fail  bool
}

func (e *stubExecutor) BuyToken(_ context.Context, _ string, amountWei *big.Int) domain.SwapResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buys++
	if e.fail {
		return domain.SwapResult{Err: "no route"}
	}
	return domain.SwapResult{Success: true, TxHash: "0xbuy", AmountIn: amountWei, DryRun: true}
}

func (e *stubExecutor) SellToken(context.Context, string, *big.Int) domain.SwapResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sells++
	if e.fail {
		return domain.SwapResult{Err: "no route"}
	}
	return domain.SwapResult{Success: true, TxHash: "0xsell", DryRun: true}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[notify.Category][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: make(map[notify.Category][]string)}
}

func (n *recordingNotifier) Notify(category notify.Category, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[category] = append(n.messages[category], message)
}

func (n *recordingNotifier) count(category notify.Category) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages[category])
}

func testSwingConfig() config.SwingConfig {
	return config.SwingConfig{
		MaxInvestmentUSD:    100,
		ProfitTarget:        1.5,
		StopLoss:            0.85,
		PollInterval:        time.Minute,
		SignalInterval:      5 * time.Minute,
		MinSamples:          50,
		MinStrength:         0.65,
		MonitorInterval:     30 * time.Second,
		MaxHold:             7 * 24 * time.Hour,
		RebalanceInterval:   24 * time.Hour,
		HistoryWindow:       48 * time.Hour,
		MaxPositionFraction: 0.2,
		MinTicketUSD:        10,
		ReinvestThreshold:   100,
		ReinvestFraction:    0.5,
		Universe:            []config.SwingToken{testToken},
		IndicatorWeights:    defaultWeights(),
	}
}

type harness struct {
	strategy *Strategy
	dex      *mutableDex
	oracle   *pricing.Oracle
	book     *ledger.Ledger
	executor *stubExecutor
	notes    *recordingNotifier
}

func newHarness(t *testing.T, cfg config.SwingConfig, tokenPriceETH float64) *harness {
	t.Helper()
	log := logger.Discard()

	d := &mutableDex{price: tokenPriceETH}
	oracle := pricing.NewOracle(
		[]pricing.DexSource{d},
		[]pricing.FiatSource{fixedFiat{usd: 2000}},
		30*time.Second, 2000, log,
	)
	book := ledger.New(memory.NewPositionStore(), nil, 1000, true, log)
	executor := &stubExecutor{}
	notes := newRecordingNotifier()

	strategy := New(cfg, Deps{
		Oracle:   oracle,
		Ledger:   book,
		Executor: executor,
		Notifier: notes,
		Log:      log,
	})
	return &harness{strategy: strategy, dex: d, oracle: oracle, book: book, executor: executor, notes: notes}
}

// seedHistory fills the token's rolling history with a linear trend.
func (h *harness) seedHistory(start, step float64, n int) {
	addr := domain.NormalizeAddress(testToken.Address)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		h.strategy.history.Append(addr, start+step*float64(i), 0, base.Add(time.Duration(i)*time.Minute))
	}
}

func TestSignalPass_BuySignalOpensSizedPosition(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05) // $100 per token
	h.seedHistory(100, -0.5, 60)                // oversold

	h.strategy.signalPass(context.Background())

	require.Equal(t, 1, h.executor.buys)
	addr := domain.NormalizeAddress(testToken.Address)
	pos, active, err := h.book.ActiveByToken(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, active)

	// min(1000 * 20%, $100 cap) = $100 at a $100 entry.
	assert.InDelta(t, 100, pos.InvestedUSD, 1e-9)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 1, pos.Quantity, 1e-9)
	assert.InDelta(t, 150, pos.TargetPrice, 1e-9)
	assert.InDelta(t, 85, pos.StopPrice, 1e-9)
	assert.Equal(t, 1, h.notes.count(notify.CategoryPosition))
}

func TestSignalPass_WeakSignalIgnored(t *testing.T) {
	cfg := testSwingConfig()
	cfg.MinStrength = 0.95
	h := newHarness(t, cfg, 0.05)
	h.seedHistory(100, -0.5, 60)

	h.strategy.signalPass(context.Background())

	assert.Equal(t, 0, h.executor.buys)
}

func TestSignalPass_InsufficientHistoryIgnored(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)
	h.seedHistory(100, -0.5, 30)

	h.strategy.signalPass(context.Background())

	assert.Equal(t, 0, h.executor.buys)
}

func TestSignalPass_ExistingPositionNotDoubled(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)
	h.seedHistory(100, -0.5, 60)

	h.strategy.signalPass(context.Background())
	h.strategy.signalPass(context.Background())

	assert.Equal(t, 1, h.executor.buys)
}

func TestSignalPass_SellSignalClosesPosition(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)

	addr := domain.NormalizeAddress(testToken.Address)
	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  testToken.Symbol,
		EntryPrice:   90,
		InvestedUSD:  100,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	h.seedHistory(100, 0.5, 60) // overbought
	h.strategy.signalPass(context.Background())

	assert.Equal(t, 1, h.executor.sells)
	_, active, err := h.book.ActiveByToken(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestEnterPosition_TicketBelowMinimumSkipped(t *testing.T) {
	cfg := testSwingConfig()
	h := newHarness(t, cfg, 0.05)
	h.seedHistory(100, -0.5, 60)

	// Drain the balance so 20% of what remains is under $10.
	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: "0x1111111111111111111111111111111111111111",
		TokenSymbol:  "DRAIN",
		EntryPrice:   1,
		InvestedUSD:  960,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	h.strategy.signalPass(context.Background())

	assert.Equal(t, 0, h.executor.buys)
}

func TestCheckPositions_ClosesAtProfitTarget(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)
	addr := domain.NormalizeAddress(testToken.Address)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  testToken.Symbol,
		EntryPrice:   100,
		InvestedUSD:  100,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	h.dex.set(0.09) // $180, above the $150 target
	h.oracle.ClearCache()
	h.strategy.checkPositions(context.Background())

	assert.Equal(t, 1, h.executor.sells)
	_, active, err := h.book.ActiveByToken(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, active)
	// $100 invested, +80%: 900 + 100 + 80.
	assert.InDelta(t, 1080, h.book.AvailableUSD(), 1e-9)
}

func TestCheckPositions_FailedSellRetriesNextPass(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.09)
	addr := domain.NormalizeAddress(testToken.Address)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  testToken.Symbol,
		EntryPrice:   100,
		InvestedUSD:  100,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	h.executor.fail = true
	h.strategy.checkPositions(context.Background())

	_, active, err := h.book.ActiveByToken(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, active)

	h.executor.fail = false
	h.strategy.checkPositions(context.Background())

	_, active, err = h.book.ActiveByToken(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRebalance_TracksPeakAndDrawdown(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.06) // $120
	addr := domain.NormalizeAddress(testToken.Address)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  testToken.Symbol,
		EntryPrice:   100,
		InvestedUSD:  100,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	// Mark at $120: value 900 + 120 = 1020.
	h.strategy.rebalanceOnce(context.Background())
	perf := h.strategy.Performance()
	assert.InDelta(t, 1020, perf.PortfolioValueUSD, 1e-9)
	assert.InDelta(t, 1020, perf.PeakValueUSD, 1e-9)
	assert.Zero(t, perf.MaxDrawdown)

	// Market drops to $90: value 990, drawdown vs the 1020 peak.
	h.dex.set(0.045)
	h.oracle.ClearCache()
	h.strategy.rebalanceOnce(context.Background())
	perf = h.strategy.Performance()
	assert.InDelta(t, 990, perf.PortfolioValueUSD, 1e-9)
	assert.InDelta(t, 1020, perf.PeakValueUSD, 1e-9)
	assert.InDelta(t, 30.0/1020.0, perf.MaxDrawdown, 1e-9)

	// Recovery never shrinks the recorded drawdown.
	h.dex.set(0.06)
	h.oracle.ClearCache()
	h.strategy.rebalanceOnce(context.Background())
	perf = h.strategy.Performance()
	assert.InDelta(t, 30.0/1020.0, perf.MaxDrawdown, 1e-9)
}

func TestRebalance_ReinvestsAccumulatedProfit(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)
	addr := domain.NormalizeAddress(testToken.Address)

	pos, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySwing,
		TokenAddress: addr,
		TokenSymbol:  testToken.Symbol,
		EntryPrice:   100,
		InvestedUSD:  100,
		TargetMult:   1.5,
		StopMult:     0.85,
	})
	require.NoError(t, err)

	// Close at 3x: realized profit $200 crosses the $100 threshold.
	_, err = h.book.Close(context.Background(), pos, domain.ExitProfitTarget, 300, "0xexit")
	require.NoError(t, err)
	require.InDelta(t, 200, h.book.Snapshot().RealizedUSD, 1e-9)

	h.strategy.rebalanceOnce(context.Background())

	// Half of the $200 moved into the trading balance.
	assert.InDelta(t, 100, h.book.Snapshot().RealizedUSD, 1e-9)
	assert.Equal(t, 1, h.notes.count(notify.CategorySystem))
}

func TestPerformance_WinRate(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)

	open := func(token string) domain.Position {
		pos, err := h.book.Open(context.Background(), ledger.OpenRequest{
			Strategy:     domain.StrategySwing,
			TokenAddress: token,
			TokenSymbol:  "X",
			EntryPrice:   100,
			InvestedUSD:  50,
			TargetMult:   1.5,
			StopMult:     0.85,
		})
		require.NoError(t, err)
		return pos
	}

	winner := open("0x1111111111111111111111111111111111111111")
	_, err := h.book.Close(context.Background(), winner, domain.ExitProfitTarget, 160, "")
	require.NoError(t, err)

	loser := open("0x2222222222222222222222222222222222222222")
	_, err = h.book.Close(context.Background(), loser, domain.ExitStopLoss, 80, "")
	require.NoError(t, err)

	perf := h.strategy.Performance()
	assert.Equal(t, 2, perf.TotalTrades)
	assert.Equal(t, 1, perf.ProfitableTrades)
	assert.InDelta(t, 0.5, perf.WinRate, 1e-9)
}

func TestPollOnce_AppendsSamples(t *testing.T) {
	h := newHarness(t, testSwingConfig(), 0.05)
	addr := domain.NormalizeAddress(testToken.Address)

	h.strategy.pollOnce(context.Background())
	assert.Equal(t, 1, h.strategy.history.Len(addr))

	h.strategy.pollOnce(context.Background())
	assert.Equal(t, 2, h.strategy.history.Len(addr))
}
