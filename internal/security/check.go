// Package security analyzes token contracts for honeypot traits and
// assigns a risk score. Every check runs independently; a check that
// cannot complete is recorded as failed and contributes nothing to the
// score. An unknown token is never treated as safe: when no check
// completes the verdict is maximum risk.
package security

import "context"

// CheckName identifies one of the security checks.
type CheckName string

const (
	CheckHoneypot     CheckName = "honeypot_api"
	CheckBytecode     CheckName = "bytecode"
	CheckVerification CheckName = "verification"
	CheckActivity     CheckName = "tx_activity"
	CheckLiquidity    CheckName = "liquidity_lock"
)

// Findings are the completed results of a single check.
type Findings struct {
	// RiskAdd is this check's contribution to the aggregate risk score.
	RiskAdd float64
	// Flags are human-readable findings.
	Flags []string
	// ForceHoneypot marks the token as a honeypot regardless of score.
	ForceHoneypot bool
	// Verified is set by the verification check only.
	Verified *bool
	// BuyTaxPct and SellTaxPct are set by the honeypot check only.
	BuyTaxPct  float64
	SellTaxPct float64
}

// Outcome is the tagged result of one check: either completed with
// findings or failed with a reason. A failed check never carries
// findings.
type Outcome struct {
	Name       CheckName
	Completed  bool
	Findings   Findings
	FailReason string
}

// completed builds a successful outcome.
func completed(name CheckName, f Findings) Outcome {
	return Outcome{Name: name, Completed: true, Findings: f}
}

// failed builds a failed outcome.
func failed(name CheckName, reason string) Outcome {
	return Outcome{Name: name, Completed: false, FailReason: reason}
}

// Check is a single security probe. Run never returns an error: inability
// to complete is expressed through the outcome so the aggregation stays
// exhaustive.
type Check interface {
	Name() CheckName
	Run(ctx context.Context, address string) Outcome
}
