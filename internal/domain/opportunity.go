package domain

import "time"

// OpportunitySource tells how a snipe candidate was discovered.
type OpportunitySource string

const (
	SourceTokenLaunch  OpportunitySource = "token_launch"
	SourceLiquidityAdd OpportunitySource = "liquidity_add"
)

// IsValid checks if the source is a known value.
func (s OpportunitySource) IsValid() bool {
	return s == SourceTokenLaunch || s == SourceLiquidityAdd
}

// Opportunity is a token that passed the security gate and awaits a
// snipe decision.
type Opportunity struct {
	Token       TokenInfo
	Source      OpportunitySource
	Security    SecurityResult
	SocialScore float64 // 0..1 heuristic from name/holders/liquidity
	Score       float64 // composite attractiveness score, 0..1
	TxHash      string  // mempool transaction that surfaced the token
	DetectedAt  time.Time
}
