package security

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/pkg/cache"
)

// honeypotRiskThreshold marks a token as a honeypot once accumulated risk
// reaches it, even when no single check said so outright.
const honeypotRiskThreshold = 0.8

// Analyzer runs the configured checks against a token and combines their
// findings into a single risk verdict. Verdicts are cached; blacklisted
// addresses short-circuit before any check runs.
type Analyzer struct {
	checks  []Check
	results *cache.TTLCache[string, domain.SecurityResult]
	log     logrus.FieldLogger
	now     func() time.Time

	mu        sync.RWMutex
	blacklist map[string]struct{}
}

// NewAnalyzer creates an analyzer over the given checks.
func NewAnalyzer(checks []Check, cacheTTL time.Duration, log logrus.FieldLogger) *Analyzer {
	return &Analyzer{
		checks:    checks,
		results:   cache.New[string, domain.SecurityResult](cacheTTL),
		log:       log,
		now:       time.Now,
		blacklist: make(map[string]struct{}),
	}
}

// WithClock overrides the time source. Test hook.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	a.results.WithClock(now)
	return a
}

// Analyze returns the security verdict for a token address.
func (a *Analyzer) Analyze(ctx context.Context, address string) domain.SecurityResult {
	addr := domain.NormalizeAddress(address)
	if !domain.IsValidAddress(addr) {
		return domain.MaxRisk(addr, a.now(), "malformed_address")
	}

	if a.IsBlacklisted(addr) {
		observability.RecordBlacklisted()
		return domain.MaxRisk(addr, a.now(), "blacklisted")
	}

	if cached, ok := a.results.Get(addr); ok {
		observability.RecordAnalysisCacheHit()
		return cached
	}

	result := a.runChecks(ctx, addr)
	a.results.Set(addr, result, 0)
	observability.RecordAnalysis()
	return result
}

func (a *Analyzer) runChecks(ctx context.Context, addr string) domain.SecurityResult {
	outcomes := make([]Outcome, len(a.checks))

	var wg sync.WaitGroup
	for i, check := range a.checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			started := a.now()
			out := check.Run(ctx, addr)
			status := "completed"
			if !out.Completed {
				status = "failed"
				a.log.WithFields(logrus.Fields{
					"token":  addr,
					"check":  string(out.Name),
					"reason": out.FailReason,
				}).Warn("security check failed")
			}
			observability.RecordCheck(string(out.Name), status, a.now().Sub(started).Seconds())
			outcomes[i] = out
		}(i, check)
	}
	wg.Wait()

	return a.combine(addr, outcomes)
}

// combine folds check outcomes into a verdict. Failed checks contribute
// nothing; their names are recorded so callers can see what was skipped.
// If every check failed the token is treated as maximum risk.
func (a *Analyzer) combine(addr string, outcomes []Outcome) domain.SecurityResult {
	result := domain.SecurityResult{
		Address:   addr,
		CheckedAt: a.now(),
	}

	completedCount := 0
	for _, out := range outcomes {
		if !out.Completed {
			result.Failed = append(result.Failed, string(out.Name))
			continue
		}
		completedCount++

		f := out.Findings
		result.RiskScore += f.RiskAdd
		result.Flags = append(result.Flags, f.Flags...)
		if f.ForceHoneypot {
			result.IsHoneypot = true
		}
		if f.Verified != nil {
			result.IsVerified = *f.Verified
		}
		if f.BuyTaxPct > result.BuyTaxPct {
			result.BuyTaxPct = f.BuyTaxPct
		}
		if f.SellTaxPct > result.SellTaxPct {
			result.SellTaxPct = f.SellTaxPct
		}
	}

	if completedCount == 0 {
		worst := domain.MaxRisk(addr, a.now(), "all_checks_failed")
		worst.Failed = result.Failed
		return worst
	}

	if result.RiskScore > 1.0 {
		result.RiskScore = 1.0
	}
	if result.RiskScore >= honeypotRiskThreshold {
		result.IsHoneypot = true
	}
	return result
}

// Blacklist marks an address so every future Analyze call rejects it
// without running checks.
func (a *Analyzer) Blacklist(address string) {
	addr := domain.NormalizeAddress(address)
	a.mu.Lock()
	a.blacklist[addr] = struct{}{}
	a.mu.Unlock()
	a.log.WithField("token", addr).Info("token blacklisted")
}

// Unblacklist removes an address from the blacklist, letting Analyze
// evaluate it again. No-op when the address was never blacklisted.
func (a *Analyzer) Unblacklist(address string) {
	addr := domain.NormalizeAddress(address)
	a.mu.Lock()
	delete(a.blacklist, addr)
	a.mu.Unlock()
	a.log.WithField("token", addr).Info("token removed from blacklist")
}

// IsBlacklisted reports whether the address has been blacklisted.
func (a *Analyzer) IsBlacklisted(address string) bool {
	addr := domain.NormalizeAddress(address)
	a.mu.RLock()
	_, ok := a.blacklist[addr]
	a.mu.RUnlock()
	return ok
}

// ClearCache drops cached verdicts. The blacklist survives.
func (a *Analyzer) ClearCache() {
	a.results.Clear()
}
