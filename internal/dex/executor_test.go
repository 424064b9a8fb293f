package dex

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/chain/stub"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/pkg/logger"
)

const (
	testWETH  = "0x4200000000000000000000000000000000000006"
	testToken = "0x1111111111111111111111111111111111111111"

	routerA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	routerB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	// Well-known test vector key, never funded.
	testPrivKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

// encodeAmounts ABI-encodes a getAmountsOut return value.
func encodeAmounts(t *testing.T, q *Quoter, amounts ...int64) []byte {
	t.Helper()
	out := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		out[i] = big.NewInt(a)
	}
	encoded, err := q.abi.Methods["getAmountsOut"].Outputs.Pack(out)
	require.NoError(t, err)
	return encoded
}

func newTestQuoter(t *testing.T, client chain.Client, routers map[string]string) *Quoter {
	t.Helper()
	q, err := NewQuoter(client, routers, logger.Discard())
	require.NoError(t, err)
	return q
}

func TestEstimateSlippage(t *testing.T) {
	assert.Equal(t, slippageSmall, EstimateSlippage(0.05))
	assert.Equal(t, slippageMedium, EstimateSlippage(0.5))
	assert.Equal(t, slippageLarge, EstimateSlippage(2.0))
}

func TestBestRoute_PicksLargestOutput(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA, "beta": routerB})
	client.CallResults[routerA] = encodeAmounts(t, q, 1_000, 5_000)
	client.CallResults[routerB] = encodeAmounts(t, q, 1_000, 7_000)

	route, err := q.BestRoute(context.Background(), []string{testWETH, testToken}, big.NewInt(1_000), 0.05)

	require.NoError(t, err)
	assert.Equal(t, "beta", route.Router)
	assert.Equal(t, int64(7_000), route.ExpectedOut.Int64())
	assert.Equal(t, slippageSmall, route.SlippagePct)
}

func TestBestRoute_SkipsFailingRouter(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA, "beta": routerB})
	client.CallResults[routerA] = encodeAmounts(t, q, 1_000, 5_000)
	// routerB has no configured result and errors out.

	route, err := q.BestRoute(context.Background(), []string{testWETH, testToken}, big.NewInt(1_000), 0.05)

	require.NoError(t, err)
	assert.Equal(t, "alpha", route.Router)
}

func TestBestRoute_NoRouterAnswering(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA})

	_, err := q.BestRoute(context.Background(), []string{testWETH, testToken}, big.NewInt(1_000), 0.05)

	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestMinAmountOut(t *testing.T) {
	min := MinAmountOut(domain.SwapRoute{ExpectedOut: big.NewInt(10_000), SlippagePct: slippageMedium})
	assert.Equal(t, int64(9_800), min.Int64())

	min = MinAmountOut(domain.SwapRoute{ExpectedOut: big.NewInt(10_000), SlippagePct: slippageSmall})
	assert.Equal(t, int64(9_950), min.Int64())
}

func TestDryRunExecutor_Buy(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA})
	client.CallResults[routerA] = encodeAmounts(t, q, 1_000, 42_000)
	exec := NewDryRunExecutor(q, testWETH, logger.Discard())

	result := exec.BuyToken(context.Background(), testToken, big.NewInt(1_000))

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	assert.Equal(t, dryRunTxHash, result.TxHash)
	assert.Equal(t, int64(42_000), result.AmountOut.Int64())
	assert.Empty(t, client.SentTxs, "dry run must not broadcast")
}

func TestDryRunExecutor_NoRoute(t *testing.T) {
	q := newTestQuoter(t, stub.NewClient(), map[string]string{"alpha": routerA})
	exec := NewDryRunExecutor(q, testWETH, logger.Discard())

	result := exec.SellToken(context.Background(), testToken, big.NewInt(1_000))

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Err)
}

func TestLiveExecutor_BuySignsAndBroadcasts(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA})
	client.CallResults[routerA] = encodeAmounts(t, q, 1_000, 42_000)
	client.DefaultReceipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 210_000}

	wallet, err := chain.NewWallet(testPrivKey)
	require.NoError(t, err)
	exec, err := NewLiveExecutor(client, wallet, q, testWETH, 300_000, logger.Discard())
	require.NoError(t, err)

	result := exec.BuyToken(context.Background(), testToken, big.NewInt(1_000))

	require.True(t, result.Success, result.Err)
	assert.False(t, result.DryRun)
	assert.Equal(t, uint64(210_000), result.GasUsed)
	require.Len(t, client.SentTxs, 1)
	assert.Equal(t, big.NewInt(1_000), client.SentTxs[0].Value())
}

func TestLiveExecutor_RevertedSwap(t *testing.T) {
	client := stub.NewClient()
	q := newTestQuoter(t, client, map[string]string{"alpha": routerA})
	client.CallResults[routerA] = encodeAmounts(t, q, 1_000, 42_000)
	client.DefaultReceipt = &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 80_000}

	wallet, err := chain.NewWallet(testPrivKey)
	require.NoError(t, err)
	exec, err := NewLiveExecutor(client, wallet, q, testWETH, 300_000, logger.Discard())
	require.NoError(t, err)

	result := exec.BuyToken(context.Background(), testToken, big.NewInt(1_000))

	assert.False(t, result.Success)
	assert.Equal(t, "swap transaction reverted", result.Err)
	assert.NotEmpty(t, result.TxHash)
}
