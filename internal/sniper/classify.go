// Package sniper hunts newly launched tokens in the Base mempool, gates
// them through the security analyzer, scores the survivors, and opens
// short-horizon positions on the best of them.
package sniper

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"

	"evm-sniper-bot/internal/domain"
)

// Selectors of V2-style liquidity provisioning calls.
var liquidityAddSelectors = [][]byte{
	mustSelector("e8e33700"), // addLiquidity
	mustSelector("f305d719"), // addLiquidityETH
	mustSelector("4515cef3"), // addLiquidityETHSupportingFeeOnTransferTokens
}

// Solidity contract creation code starts with the standard preamble.
var creationPreambles = [][]byte{
	{0x60, 0x80, 0x60, 0x40},
}

// minCreationCodeLen filters out trivial deployments; a real ERC-20
// carries far more init code.
const minCreationCodeLen = 500

func mustSelector(h string) []byte {
	b, err := hex.DecodeString(h)
	if err != nil {
		panic(err)
	}
	return b
}

// Classifier sorts pending transactions into opportunity sources.
type Classifier struct {
	routers         map[string]struct{} // lowercased router addresses
	minLiquidityWei *big.Int
}

// NewClassifier builds a classifier over the known DEX routers.
func NewClassifier(routers map[string]string, minLiquidityWei *big.Int) *Classifier {
	set := make(map[string]struct{}, len(routers))
	for _, addr := range routers {
		set[strings.ToLower(addr)] = struct{}{}
	}
	return &Classifier{routers: set, minLiquidityWei: minLiquidityWei}
}

// Classify decides whether a pending transaction is worth following up.
// ok is false for the vast majority of mempool traffic.
func (c *Classifier) Classify(tx domain.PendingTx) (domain.OpportunitySource, bool) {
	if c.isTokenLaunch(tx) {
		return domain.SourceTokenLaunch, true
	}
	if c.isLiquidityAdd(tx) {
		return domain.SourceLiquidityAdd, true
	}
	return "", false
}

func (c *Classifier) isTokenLaunch(tx domain.PendingTx) bool {
	if !tx.IsContractCreation() || len(tx.Input) < minCreationCodeLen {
		return false
	}
	for _, preamble := range creationPreambles {
		if bytes.HasPrefix(tx.Input, preamble) {
			return true
		}
	}
	return false
}

func (c *Classifier) isLiquidityAdd(tx domain.PendingTx) bool {
	if _, known := c.routers[strings.ToLower(tx.To)]; !known {
		return false
	}
	method := tx.MethodID()
	if method == nil {
		return false
	}
	isAdd := false
	for _, sel := range liquidityAddSelectors {
		if bytes.Equal(method, sel) {
			isAdd = true
			break
		}
	}
	if !isAdd {
		return false
	}
	return tx.Value != nil && tx.Value.Cmp(c.minLiquidityWei) > 0
}

// TokenFromLiquidityAdd extracts the token being provisioned from the
// calldata of a liquidity-add call. For the two-token variant the first
// non-WETH address wins.
func TokenFromLiquidityAdd(tx domain.PendingTx, wethAddress string) (string, bool) {
	method := tx.MethodID()
	if method == nil || len(tx.Input) < 4+32 {
		return "", false
	}

	first := addressArg(tx.Input, 0)
	if !bytes.Equal(method, liquidityAddSelectors[0]) {
		// ETH variants: single token parameter.
		return first, first != ""
	}

	// addLiquidity(tokenA, tokenB, ...): skip the wrapped native side.
	weth := strings.ToLower(wethAddress)
	if first != "" && first != weth {
		return first, true
	}
	second := addressArg(tx.Input, 1)
	if second != "" && second != weth {
		return second, true
	}
	return "", false
}

// addressArg reads the n-th 32-byte calldata word as an address.
func addressArg(input []byte, n int) string {
	start := 4 + n*32
	if len(input) < start+32 {
		return ""
	}
	word := input[start : start+32]
	return domain.NormalizeAddress("0x" + hex.EncodeToString(word[12:]))
}
