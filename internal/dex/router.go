// Package dex quotes and executes swaps against V2-style routers on Base,
// choosing the router that returns the most output for a given input.
package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/domain"
)

// ErrNoRoute means no router quoted the requested pair.
var ErrNoRoute = errors.New("no router quoted the pair")

const routerABIJSON = `[
  {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// Slippage tiers by trade size in ETH.
const (
	smallTradeETH  = 0.1
	mediumTradeETH = 1.0

	slippageSmall  = 0.005
	slippageMedium = 0.02
	slippageLarge  = 0.05
)

// EstimateSlippage returns the expected slippage fraction for a trade of
// the given size in ETH. Tiered by size against typical Base pool depth.
func EstimateSlippage(amountETH float64) float64 {
	switch {
	case amountETH < smallTradeETH:
		return slippageSmall
	case amountETH < mediumTradeETH:
		return slippageMedium
	default:
		return slippageLarge
	}
}

// Quoter finds the best route for a swap across the configured routers.
type Quoter struct {
	client  chain.Client
	routers map[string]string // name -> router address
	abi     abi.ABI
	log     logrus.FieldLogger
}

// NewQuoter creates a quoter over the configured routers.
func NewQuoter(client chain.Client, routers map[string]string, log logrus.FieldLogger) (*Quoter, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &Quoter{client: client, routers: routers, abi: parsed, log: log}, nil
}

// BestRoute quotes every router for the path and returns the one with the
// largest output. Routers that fail to quote are skipped.
func (q *Quoter) BestRoute(ctx context.Context, path []string, amountIn *big.Int, amountETH float64) (domain.SwapRoute, error) {
	abiPath := make([]common.Address, len(path))
	for i, p := range path {
		abiPath[i] = common.HexToAddress(p)
	}
	data, err := q.abi.Pack("getAmountsOut", amountIn, abiPath)
	if err != nil {
		return domain.SwapRoute{}, fmt.Errorf("pack getAmountsOut: %w", err)
	}

	var routes []domain.SwapRoute
	for name, routerAddr := range q.routers {
		out, err := q.client.CallContract(ctx, routerAddr, data)
		if err != nil {
			q.log.WithField("router", name).WithError(err).Debug("router quote failed")
			continue
		}
		unpacked, err := q.abi.Unpack("getAmountsOut", out)
		if err != nil {
			q.log.WithField("router", name).WithError(err).Debug("router returned malformed amounts")
			continue
		}
		amounts, ok := unpacked[0].([]*big.Int)
		if !ok || len(amounts) < 2 || amounts[len(amounts)-1].Sign() <= 0 {
			continue
		}
		routes = append(routes, domain.SwapRoute{
			Router:        name,
			RouterAddress: routerAddr,
			Path:          path,
			AmountIn:      new(big.Int).Set(amountIn),
			ExpectedOut:   amounts[len(amounts)-1],
			SlippagePct:   EstimateSlippage(amountETH),
		})
	}
	if len(routes) == 0 {
		return domain.SwapRoute{}, ErrNoRoute
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ExpectedOut.Cmp(routes[j].ExpectedOut) > 0
	})
	best := routes[0]
	q.log.WithFields(logrus.Fields{
		"router":       best.Router,
		"expected_out": best.ExpectedOut.String(),
		"slippage":     best.SlippagePct,
	}).Debug("best route selected")
	return best, nil
}

// MinAmountOut applies the route's slippage tolerance to its expected
// output.
func MinAmountOut(route domain.SwapRoute) *big.Int {
	// floor(expected * (1 - slippage)) in basis points to stay integral.
	bps := int64((1 - route.SlippagePct) * 10000)
	min := new(big.Int).Mul(route.ExpectedOut, big.NewInt(bps))
	return min.Div(min, big.NewInt(10000))
}
