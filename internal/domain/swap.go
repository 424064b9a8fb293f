package domain

import "math/big"

// SwapRoute is a priced path through one DEX router.
type SwapRoute struct {
	Router        string   // router name ("uniswap_v3", "baseswap", ...)
	RouterAddress string   // router contract address
	Path          []string // token addresses along the route
	AmountIn      *big.Int // input amount in wei
	ExpectedOut   *big.Int // quoted output amount in token base units
	SlippagePct   float64  // tolerated slippage for this trade size
}

// SwapResult reports the outcome of a swap attempt. A failed swap is a
// result with Success=false, not an error: callers decide whether to
// retry or abandon.
type SwapResult struct {
	Success   bool
	TxHash    string
	AmountIn  *big.Int
	AmountOut *big.Int
	GasUsed   uint64
	DryRun    bool
	Err       string // failure description when Success is false
}
