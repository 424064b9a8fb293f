package domain

import (
	"regexp"
	"strings"
	"time"
)

// TokenInfo describes an ERC-20 token observed on chain.
type TokenInfo struct {
	Address      string  // checksummed or lowercase hex contract address
	Name         string  // token name (may be empty if metadata call failed)
	Symbol       string  // token symbol
	Decimals     uint8   // token decimals
	TotalSupply  float64 // total supply in whole tokens
	LiquidityETH float64 // pool liquidity denominated in the native asset
	HolderCount  int     // approximate holder count from the explorer
	Verified     bool    // source code verified on the explorer
	DetectedAt   time.Time
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether s looks like a 20-byte hex address.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress lowercases an address so it can serve as a map key.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
