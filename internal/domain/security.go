package domain

import "time"

// SecurityResult is the combined verdict of all security checks for a token.
type SecurityResult struct {
	Address    string   // normalized token address
	RiskScore  float64  // 0.0 (benign) .. 1.0 (certain scam)
	IsHoneypot bool     // token cannot be sold, or risk crossed the honeypot threshold
	IsVerified bool     // source code verified on the explorer
	BuyTaxPct  float64  // buy tax percentage reported by simulation
	SellTaxPct float64  // sell tax percentage reported by simulation
	Flags      []string // human-readable findings ("blacklist_function", "pausable", ...)
	Failed     []string // names of checks that did not complete
	CheckedAt  time.Time
}

// MaxRisk is the pessimistic verdict used when analysis cannot run at all:
// an unknown token is treated as hostile, never as safe.
func MaxRisk(address string, now time.Time, reason string) SecurityResult {
	return SecurityResult{
		Address:    address,
		RiskScore:  1.0,
		IsHoneypot: true,
		Flags:      []string{reason},
		CheckedAt:  now,
	}
}
