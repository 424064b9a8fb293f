package sniper

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/dex"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/ledger"
	"evm-sniper-bot/internal/notify"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/internal/pricing"
	"evm-sniper-bot/internal/security"
)

// investigationSlots bounds concurrent token investigations so a burst of
// launches cannot spawn unbounded analyzer fan-outs.
const investigationSlots = 8

// Deps are the strategy's collaborators.
type Deps struct {
	Client   chain.Client
	Resolver *TokenResolver
	Analyzer *security.Analyzer
	Oracle   *pricing.Oracle
	Ledger   *ledger.Ledger
	Executor dex.Executor
	Notifier notify.Notifier
	Log      logrus.FieldLogger
}

// Strategy is the memecoin sniper.
type Strategy struct {
	cfg             config.SniperConfig
	rejectThreshold float64
	classifier      *Classifier
	weth            string
	deps            Deps
	now             func() time.Time

	slots chan struct{}

	mu            sync.Mutex
	lastPurchase  map[string]time.Time
	opportunities []domain.Opportunity
}

// New creates the sniper strategy.
func New(cfg config.SniperConfig, rejectThreshold float64, routers map[string]string, wethAddress string, deps Deps) *Strategy {
	minLiquidityWei, _ := new(big.Float).Mul(
		big.NewFloat(cfg.MinLiquidityETH), big.NewFloat(1e18),
	).Int(nil)

	return &Strategy{
		cfg:             cfg,
		rejectThreshold: rejectThreshold,
		classifier:      NewClassifier(routers, minLiquidityWei),
		weth:            wethAddress,
		deps:            deps,
		now:             time.Now,
		slots:           make(chan struct{}, investigationSlots),
		lastPurchase:    make(map[string]time.Time),
	}
}

// WithClock overrides the time source. Test hook.
func (s *Strategy) WithClock(now func() time.Time) *Strategy {
	s.now = now
	return s
}

// ConsumeMempool drains the pending-transaction hash stream until ctx is
// done. Investigations run concurrently so a slow security analysis never
// stalls the stream.
func (s *Strategy) ConsumeMempool(ctx context.Context, hashes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case hash, ok := <-hashes:
			if !ok {
				return
			}
			s.handleHash(ctx, hash)
		}
	}
}

func (s *Strategy) handleHash(ctx context.Context, hash string) {
	tx, _, err := s.deps.Client.PendingTransaction(ctx, hash)
	if err != nil || tx == nil {
		return
	}
	observability.RecordPendingTx()
	observability.SetLastMempoolEvent(s.now())

	source, ok := s.classifier.Classify(*tx)
	if !ok {
		return
	}
	observability.RecordClassified(string(source))
	s.deps.Log.WithFields(logrus.Fields{
		"tx":     hash,
		"source": string(source),
	}).Debug("mempool candidate")

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	go func() {
		defer func() { <-s.slots }()
		s.investigate(ctx, source, *tx)
	}()
}

// investigate turns a classified mempool transaction into a token address
// and runs the full evaluation pipeline on it.
func (s *Strategy) investigate(ctx context.Context, source domain.OpportunitySource, tx domain.PendingTx) {
	var tokenAddr string
	switch source {
	case domain.SourceTokenLaunch:
		receipt, err := s.deps.Client.WaitForReceipt(ctx, tx.Hash)
		if err != nil || receipt.Status != 1 {
			return
		}
		tokenAddr = domain.NormalizeAddress(receipt.ContractAddress.Hex())
	case domain.SourceLiquidityAdd:
		addr, ok := TokenFromLiquidityAdd(tx, s.weth)
		if !ok {
			return
		}
		tokenAddr = addr
	}
	if !domain.IsValidAddress(tokenAddr) {
		return
	}

	s.evaluateToken(ctx, tokenAddr, source, tx.Hash)
}

func (s *Strategy) evaluateToken(ctx context.Context, tokenAddr string, source domain.OpportunitySource, txHash string) {
	log := s.deps.Log.WithField("token", tokenAddr)

	if s.deps.Analyzer.IsBlacklisted(tokenAddr) {
		observability.RecordOpportunitySkipped("blacklisted")
		return
	}

	token, err := s.deps.Resolver.Resolve(ctx, tokenAddr)
	if err != nil {
		log.WithError(err).Debug("token resolution failed")
		return
	}

	sec := s.deps.Analyzer.Analyze(ctx, tokenAddr)
	if sec.IsHoneypot || sec.RiskScore > s.rejectThreshold {
		s.deps.Analyzer.Blacklist(tokenAddr)
		observability.RecordOpportunitySkipped("security")
		log.WithFields(logrus.Fields{
			"risk":     sec.RiskScore,
			"honeypot": sec.IsHoneypot,
			"flags":    sec.Flags,
		}).Warn("token blacklisted after security analysis")
		s.deps.Notifier.Notify(notify.CategoryRisk,
			fmt.Sprintf("Blacklisted %s (%s): risk %.2f, honeypot=%v", token.Symbol, tokenAddr, sec.RiskScore, sec.IsHoneypot))
		return
	}

	token.Verified = sec.IsVerified

	if token.HolderCount < s.cfg.MinHolders || token.LiquidityETH < s.cfg.MinLiquidityETH {
		observability.RecordOpportunitySkipped("thin_market")
		log.WithFields(logrus.Fields{
			"holders":   token.HolderCount,
			"liquidity": token.LiquidityETH,
		}).Debug("token below market thresholds")
		return
	}

	opp := domain.Opportunity{
		Token:       token,
		Source:      source,
		Security:    sec,
		SocialScore: SocialScore(token),
		TxHash:      txHash,
		DetectedAt:  s.now(),
	}
	opp.Score = CompositeScore(opp, s.cfg.ScoreWeights)

	s.mu.Lock()
	s.opportunities = append(s.opportunities, opp)
	s.mu.Unlock()
	observability.RecordOpportunity()

	log.WithFields(logrus.Fields{
		"symbol": token.Symbol,
		"score":  opp.Score,
		"social": opp.SocialScore,
		"risk":   sec.RiskScore,
	}).Info("opportunity scored")

	if reason, ok := s.shouldSnipe(ctx, opp); !ok {
		observability.RecordOpportunitySkipped(reason)
		log.WithField("reason", reason).Debug("snipe suppressed")
		return
	}
	s.executeSnipe(ctx, opp)
}

// shouldSnipe applies the four snipe gates. All must hold; a failing gate
// suppresses the buy silently.
func (s *Strategy) shouldSnipe(ctx context.Context, opp domain.Opportunity) (reason string, ok bool) {
	if opp.Score < s.cfg.MinScore {
		return "low_score", false
	}

	s.mu.Lock()
	last, seen := s.lastPurchase[opp.Token.Address]
	s.mu.Unlock()
	if seen && s.now().Sub(last) < s.cfg.SnipeCooldown {
		return "cooldown", false
	}

	if _, active, err := s.deps.Ledger.ActiveByToken(ctx, opp.Token.Address); err != nil || active {
		return "position_open", false
	}

	invested, err := s.deps.Ledger.TotalInvested(ctx, domain.StrategySniper)
	if err != nil || invested >= s.cfg.MaxInvestmentUSD*s.cfg.ExposureMultiple {
		return "exposure_cap", false
	}
	return "", true
}

func (s *Strategy) executeSnipe(ctx context.Context, opp domain.Opportunity) {
	log := s.deps.Log.WithFields(logrus.Fields{
		"token":  opp.Token.Address,
		"symbol": opp.Token.Symbol,
	})

	ethUSD := s.deps.Oracle.ETHPriceUSD(ctx)
	priceETH, ok := s.deps.Oracle.TokenPriceETH(ctx, opp.Token.Address)
	if !ok || priceETH <= 0 {
		log.Debug("no token price, snipe abandoned")
		return
	}
	entryUSD := priceETH * ethUSD

	investment := s.cfg.MaxInvestmentUSD
	amountWei, _ := new(big.Float).Mul(
		big.NewFloat(investment/ethUSD), big.NewFloat(1e18),
	).Int(nil)

	result := s.deps.Executor.BuyToken(ctx, opp.Token.Address, amountWei)
	if !result.Success {
		log.WithField("error", result.Err).Warn("snipe buy failed")
		return
	}

	pos, err := s.deps.Ledger.Open(ctx, ledger.OpenRequest{
		Strategy:     domain.StrategySniper,
		TokenAddress: opp.Token.Address,
		TokenSymbol:  opp.Token.Symbol,
		EntryPrice:   entryUSD,
		InvestedUSD:  investment,
		TargetMult:   s.cfg.ProfitTarget,
		StopMult:     s.cfg.StopLoss,
		EntryTxHash:  result.TxHash,
	})
	if err != nil {
		log.WithError(err).Warn("snipe position not opened")
		return
	}

	s.mu.Lock()
	s.lastPurchase[opp.Token.Address] = s.now()
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"entry":    pos.EntryPrice,
		"invested": investment,
		"tx":       result.TxHash,
	}).Info("snipe executed")
	s.deps.Notifier.Notify(notify.CategoryPosition,
		fmt.Sprintf("Sniped %s at $%.8f for $%.2f", opp.Token.Symbol, entryUSD, investment))
}

// MonitorPositions polls active sniper positions and closes the ones
// hitting an exit rule. Runs until ctx is done.
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
	active, err := s.deps.Ledger.ActivePositions(ctx, domain.StrategySniper)
	if err != nil {
		s.deps.Log.WithError(err).Warn("listing active positions failed")
		return
	}

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

// closePosition sells the holding and records the close. A failed sell
// leaves the position active so the next monitor pass retries it.
func (s *Strategy) closePosition(ctx context.Context, pos domain.Position, reason domain.ExitReason, price float64) {
	log := s.deps.Log.WithFields(logrus.Fields{
		"token":  pos.TokenAddress,
		"symbol": pos.TokenSymbol,
		"reason": string(reason),
	})

	amountTokens, _ := new(big.Float).Mul(
		big.NewFloat(pos.Quantity), big.NewFloat(1e18),
	).Int(nil)
	result := s.deps.Executor.SellToken(ctx, pos.TokenAddress, amountTokens)
	if !result.Success {
		log.WithField("error", result.Err).Warn("position sell failed, will retry")
		return
	}

	pnl, err := s.deps.Ledger.Close(ctx, pos, reason, price, result.TxHash)
	if err != nil {
		log.WithError(err).Error("closing position failed after successful sell")
		return
	}
	s.deps.Notifier.Notify(notify.CategoryPosition,
		fmt.Sprintf("Closed %s (%s): pnl $%.2f", pos.TokenSymbol, reason, pnl))
}

// PruneOpportunities drops stale opportunities on a fixed cadence.
func (s *Strategy) PruneOpportunities(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.OpportunityTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneOnce()
		}
	}
}

func (s *Strategy) pruneOnce() {
	cutoff := s.now().Add(-s.cfg.OpportunityTTL)
	s.mu.Lock()
	kept := s.opportunities[:0]
	for _, opp := range s.opportunities {
		if opp.DetectedAt.After(cutoff) {
			kept = append(kept, opp)
		}
	}
	dropped := len(s.opportunities) - len(kept)
	s.opportunities = kept
	s.mu.Unlock()
	if dropped > 0 {
		s.deps.Log.WithField("dropped", dropped).Debug("stale opportunities pruned")
	}
}

// Opportunities returns a snapshot of the current opportunity list.
func (s *Strategy) Opportunities() []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Opportunity, len(s.opportunities))
	copy(out, s.opportunities)
	return out
}
