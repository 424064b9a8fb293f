package sniper

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/chain/stub"
	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/ledger"
	"evm-sniper-bot/internal/notify"
	"evm-sniper-bot/internal/pricing"
	"evm-sniper-bot/internal/security"
	"evm-sniper-bot/internal/storage/memory"
	"evm-sniper-bot/pkg/logger"
)

// fixedCheck is a security check with a canned outcome.
type fixedCheck struct {
	outcome security.Outcome
}

func (c fixedCheck) Name() security.CheckName { return c.outcome.Name }

func (c fixedCheck) Run(context.Context, string) security.Outcome { return c.outcome }

func safeCheck() security.Check {
	verified := true
	return fixedCheck{outcome: security.Outcome{
		Name:      "stub",
		Completed: true,
		Findings:  security.Findings{Verified: &verified},
	}}
}

func hostileCheck() security.Check {
	return fixedCheck{outcome: security.Outcome{
		Name:      "stub",
		Completed: true,
		Findings:  security.Findings{RiskAdd: 0.9, ForceHoneypot: true, Flags: []string{"honeypot_flagged"}},
	}}
}

// fixedDex quotes a constant ETH price for every token.
type fixedDex struct{ price float64 }

func (d fixedDex) Name() string { return "fixed" }

func (d fixedDex) TokenPriceETH(context.Context, string) (float64, error) {
	return d.price, nil
}

type fixedFiat struct{ usd float64 }

func (f fixedFiat) Name() string { return "fixed" }

func (f fixedFiat) ETHPriceUSD(context.Context) (float64, error) { return f.usd, nil }

// stubExecutor records swap attempts.
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

func testSniperConfig() config.SniperConfig {
	return config.SniperConfig{
		MaxInvestmentUSD: 8,
		ProfitTarget:     2.0,
		StopLoss:         0.7,
		MinLiquidityETH:  0.01,
		MinHolders:       50,
		MinScore:         0.6,
		SnipeCooldown:    30 * time.Second,
		MonitorInterval:  10 * time.Second,
		MaxHold:          24 * time.Hour,
		OpportunityTTL:   time.Hour,
		ExposureMultiple: 10,
		ScoreWeights:     config.ScoreWeights{Social: 0.4, Security: 0.3, Liquidity: 0.2, Holders: 0.1},
	}
}

type harness struct {
	client   *stub.Client
	strategy *Strategy
	analyzer *security.Analyzer
	book     *ledger.Ledger
	executor *stubExecutor
	notes    *recordingNotifier
}

func newHarness(t *testing.T, cfg config.SniperConfig, check security.Check, tokenPriceETH float64) *harness {
	t.Helper()
	log := logger.Discard()

	client := stub.NewClient()
	analyzer := security.NewAnalyzer([]security.Check{check}, time.Hour, log)
	oracle := pricing.NewOracle(
		[]pricing.DexSource{fixedDex{price: tokenPriceETH}},
		[]pricing.FiatSource{fixedFiat{usd: 2000}},
		30*time.Second, 2000, log,
	)
	book := ledger.New(memory.NewPositionStore(), nil, 1000, true, log)
	executor := &stubExecutor{}
	notes := newRecordingNotifier()

	strategy := New(cfg, 0.7, config.DefaultRouters, config.WETHAddress, Deps{
		Client:   client,
		Resolver: NewTokenResolver(client, config.WETHAddress, "", "", time.Second, log),
		Analyzer: analyzer,
		Oracle:   oracle,
		Ledger:   book,
		Executor: executor,
		Notifier: notes,
		Log:      log,
	})
	return &harness{
		client:   client,
		strategy: strategy,
		analyzer: analyzer,
		book:     book,
		executor: executor,
		notes:    notes,
	}
}

// seedViableToken configures the stub chain so tokenA resolves with deep
// liquidity and a meme name. Holder count comes from the explorer, which
// the harness disables, so tests relying on holders override the gate.
func (h *harness) seedViableToken() {
	h.client.Metadata[tokenA] = &chain.TokenMetadata{
		Name: "Pepe Rocket", Symbol: "PEPE", Decimals: 18, TotalSupply: big.NewInt(1e18),
	}
	h.client.CallResults[defaultFactories["baseswap"]] = addressResult(testPair)
	h.client.CallResults[config.WETHAddress] = uintResult(big.NewInt(500_000_000_000_000_000))
}

func TestEvaluateToken_HostileTokenIsBlacklistedAndNeverBought(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, hostileCheck(), 0.001)
	h.seedViableToken()

	h.strategy.evaluateToken(context.Background(), tokenA, domain.SourceTokenLaunch, "0xabc")

	assert.True(t, h.analyzer.IsBlacklisted(tokenA))
	assert.Equal(t, 0, h.executor.buys)
	assert.Equal(t, 1, h.notes.count(notify.CategoryRisk))

	_, active, err := h.book.ActiveByToken(context.Background(), tokenA)
	require.NoError(t, err)
	assert.False(t, active)

	// The blacklist persists: a second sighting is dropped up front.
	h.strategy.evaluateToken(context.Background(), tokenA, domain.SourceLiquidityAdd, "0xdef")
	assert.Equal(t, 1, h.notes.count(notify.CategoryRisk))
}

func TestEvaluateToken_ThinMarketNeverScored(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.001)
	// Metadata only: zero holders, zero liquidity.
	h.client.Metadata[tokenA] = &chain.TokenMetadata{Name: "Pepe Rocket", Symbol: "PEPE", Decimals: 18}

	h.strategy.evaluateToken(context.Background(), tokenA, domain.SourceTokenLaunch, "0xabc")

	assert.Empty(t, h.strategy.Opportunities())
	assert.Equal(t, 0, h.executor.buys)
	assert.False(t, h.analyzer.IsBlacklisted(tokenA))
}

func TestEvaluateToken_QualifyingTokenIsSniped(t *testing.T) {
	cfg := testSniperConfig()
	cfg.MinHolders = 0 // holder feed disabled in the harness
	cfg.MinScore = 0.55
	h := newHarness(t, cfg, safeCheck(), 0.001)
	h.seedViableToken()

	h.strategy.evaluateToken(context.Background(), tokenA, domain.SourceLiquidityAdd, "0xabc")

	require.Equal(t, 1, h.executor.buys)
	pos, active, err := h.book.ActiveByToken(context.Background(), tokenA)
	require.NoError(t, err)
	require.True(t, active)

	// 0.001 ETH at $2000/ETH.
	assert.InDelta(t, 2.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 8, pos.InvestedUSD, 1e-9)
	assert.InDelta(t, 992, h.book.AvailableUSD(), 1e-9)

	opps := h.strategy.Opportunities()
	require.Len(t, opps, 1)
	// keyword 0.3, liquidity tier 0.2; no holder data.
	assert.InDelta(t, 0.5, opps[0].SocialScore, 1e-9)
	assert.True(t, opps[0].Token.Verified, "verification verdict carried onto the token")
	assert.Equal(t, 1, h.notes.count(notify.CategoryPosition))
}

func TestEvaluateToken_LowScoreSuppressesBuy(t *testing.T) {
	cfg := testSniperConfig()
	cfg.MinHolders = 0
	cfg.MinScore = 0.99
	h := newHarness(t, cfg, safeCheck(), 0.001)
	h.seedViableToken()

	h.strategy.evaluateToken(context.Background(), tokenA, domain.SourceLiquidityAdd, "0xabc")

	assert.Len(t, h.strategy.Opportunities(), 1)
	assert.Equal(t, 0, h.executor.buys)
}

func TestShouldSnipe_CooldownBlocksReentry(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.001)

	base := time.Now()
	h.strategy.WithClock(func() time.Time { return base })
	h.strategy.lastPurchase[tokenA] = base.Add(-10 * time.Second)

	opp := domain.Opportunity{Token: domain.TokenInfo{Address: tokenA}, Score: 0.9}
	reason, ok := h.strategy.shouldSnipe(context.Background(), opp)
	require.False(t, ok)
	assert.Equal(t, "cooldown", reason)

	// Past the cooldown the gate opens again.
	h.strategy.WithClock(func() time.Time { return base.Add(31 * time.Second) })
	_, ok = h.strategy.shouldSnipe(context.Background(), opp)
	assert.True(t, ok)
}

func TestShouldSnipe_ActivePositionBlocks(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.001)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: tokenA,
		TokenSymbol:  "PEPE",
		EntryPrice:   1,
		InvestedUSD:  8,
		TargetMult:   2.0,
		StopMult:     0.7,
	})
	require.NoError(t, err)

	opp := domain.Opportunity{Token: domain.TokenInfo{Address: tokenA}, Score: 0.9}
	reason, ok := h.strategy.shouldSnipe(context.Background(), opp)
	require.False(t, ok)
	assert.Equal(t, "position_open", reason)
}

func TestShouldSnipe_ExposureCapBlocks(t *testing.T) {
	cfg := testSniperConfig()
	cfg.ExposureMultiple = 1 // one position fills the book
	h := newHarness(t, cfg, safeCheck(), 0.001)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: tokenB,
		TokenSymbol:  "OTHER",
		EntryPrice:   1,
		InvestedUSD:  8,
		TargetMult:   2.0,
		StopMult:     0.7,
	})
	require.NoError(t, err)

	opp := domain.Opportunity{Token: domain.TokenInfo{Address: tokenA}, Score: 0.9}
	reason, ok := h.strategy.shouldSnipe(context.Background(), opp)
	require.False(t, ok)
	assert.Equal(t, "exposure_cap", reason)
}

func TestInvestigate_TokenLaunchResolvesDeployedAddress(t *testing.T) {
	cfg := testSniperConfig()
	cfg.MinHolders = 0
	cfg.MinScore = 0.55
	h := newHarness(t, cfg, safeCheck(), 0.001)
	h.seedViableToken()
	h.client.Receipts["0xlaunch"] = &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: common.HexToAddress(tokenA),
	}

	h.strategy.investigate(context.Background(), domain.SourceTokenLaunch, domain.PendingTx{Hash: "0xlaunch"})

	assert.Equal(t, 1, h.executor.buys)
}

func TestInvestigate_RevertedDeploymentIgnored(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.001)
	h.client.Receipts["0xlaunch"] = &types.Receipt{Status: types.ReceiptStatusFailed}

	h.strategy.investigate(context.Background(), domain.SourceTokenLaunch, domain.PendingTx{Hash: "0xlaunch"})

	assert.Empty(t, h.strategy.Opportunities())
}

func TestCheckPositions_ClosesAtProfitTarget(t *testing.T) {
	cfg := testSniperConfig()
	// Token is worth 0.002 ETH = $4, doubling a $2 entry.
	h := newHarness(t, cfg, safeCheck(), 0.002)

	pos, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: tokenA,
		TokenSymbol:  "PEPE",
		EntryPrice:   2.0,
		InvestedUSD:  8,
		TargetMult:   2.0,
		StopMult:     0.7,
	})
	require.NoError(t, err)

	h.strategy.checkPositions(context.Background())

	assert.Equal(t, 1, h.executor.sells)
	_, active, err := h.book.ActiveByToken(context.Background(), pos.TokenAddress)
	require.NoError(t, err)
	assert.False(t, active)
	// $8 invested doubled: 992 + 8 + 8.
	assert.InDelta(t, 1008, h.book.AvailableUSD(), 1e-9)
	assert.Equal(t, 1, h.notes.count(notify.CategoryPosition))
}

func TestCheckPositions_FailedSellLeavesPositionOpen(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.002)
	h.executor.fail = true

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: tokenA,
		TokenSymbol:  "PEPE",
		EntryPrice:   2.0,
		InvestedUSD:  8,
		TargetMult:   2.0,
		StopMult:     0.7,
	})
	require.NoError(t, err)

	h.strategy.checkPositions(context.Background())

	_, active, err := h.book.ActiveByToken(context.Background(), tokenA)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestCheckPositions_HoldsBetweenStopAndTarget(t *testing.T) {
	cfg := testSniperConfig()
	// $3 against a $2 entry: inside the band.
	h := newHarness(t, cfg, safeCheck(), 0.0015)

	_, err := h.book.Open(context.Background(), ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: tokenA,
		TokenSymbol:  "PEPE",
		EntryPrice:   2.0,
		InvestedUSD:  8,
		TargetMult:   2.0,
		StopMult:     0.7,
	})
	require.NoError(t, err)

	h.strategy.checkPositions(context.Background())

	assert.Equal(t, 0, h.executor.sells)
}

func TestPruneOpportunities_DropsStaleEntries(t *testing.T) {
	cfg := testSniperConfig()
	h := newHarness(t, cfg, safeCheck(), 0.001)

	base := time.Now()
	h.strategy.WithClock(func() time.Time { return base })
	h.strategy.opportunities = []domain.Opportunity{
		{Token: domain.TokenInfo{Address: tokenA}, DetectedAt: base.Add(-2 * time.Hour)},
		{Token: domain.TokenInfo{Address: tokenB}, DetectedAt: base.Add(-10 * time.Minute)},
	}

	h.strategy.pruneOnce()

	opps := h.strategy.Opportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, tokenB, opps[0].Token.Address)
}
