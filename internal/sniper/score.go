package sniper

import (
	"strings"

	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/domain"
)

// memecoinKeywords in a token's name or symbol hint at meme-driven
// attention, the sniper's bread and butter.
var memecoinKeywords = []string{"doge", "shib", "pepe", "wojak", "chad", "moon", "rocket", "inu"}

// Social score heuristics.
const (
	keywordBonus       = 0.3
	holderBonusLevel1  = 100
	holderBonusLevel2  = 500
	holderBonus        = 0.2
	liquidityLevel1ETH = 0.1
	liquidityLevel2ETH = 1.0
	liquidityBonus1    = 0.2
	liquidityBonus2    = 0.1
)

// Composite score normalization anchors.
const (
	liquidityScoreCapETH = 1.0
	holderScoreCap       = 200.0
)

// SocialScore estimates meme traction from cheap observable signals, not
// external sentiment feeds.
func SocialScore(token domain.TokenInfo) float64 {
	score := 0.0

	name := strings.ToLower(token.Name)
	symbol := strings.ToLower(token.Symbol)
	for _, kw := range memecoinKeywords {
		if strings.Contains(name, kw) || strings.Contains(symbol, kw) {
			score += keywordBonus
			break
		}
	}

	if token.HolderCount > holderBonusLevel1 {
		score += holderBonus
	}
	if token.HolderCount > holderBonusLevel2 {
		score += holderBonus
	}

	if token.LiquidityETH > liquidityLevel1ETH {
		score += liquidityBonus1
	}
	if token.LiquidityETH > liquidityLevel2ETH {
		score += liquidityBonus2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CompositeScore folds social traction, security risk, liquidity depth
// and holder distribution into one attractiveness number in [0,1].
func CompositeScore(opp domain.Opportunity, w config.ScoreWeights) float64 {
	liquidity := opp.Token.LiquidityETH / liquidityScoreCapETH
	if liquidity > 1.0 {
		liquidity = 1.0
	}
	holders := float64(opp.Token.HolderCount) / holderScoreCap
	if holders > 1.0 {
		holders = 1.0
	}

	return w.Social*opp.SocialScore +
		w.Security*(1-opp.Security.RiskScore) +
		w.Liquidity*liquidity +
		w.Holders*holders
}
