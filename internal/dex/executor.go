package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/observability"
)

// dryRunTxHash marks a simulated execution.
const dryRunTxHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// swapDeadline is how long a submitted swap stays valid.
const swapDeadline = 10 * time.Minute

const erc20ApproveABI = `[{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

// maxUint256 is the unlimited ERC-20 allowance.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Executor performs token swaps. A failed swap is a result, not an
// error: the strategies inspect Success and move on.
type Executor interface {
	// BuyToken swaps amountWei of ETH into the token.
	BuyToken(ctx context.Context, tokenAddress string, amountWei *big.Int) domain.SwapResult
	// SellToken swaps amountTokens of the token back into ETH.
	SellToken(ctx context.Context, tokenAddress string, amountTokens *big.Int) domain.SwapResult
}

func failedSwap(amountIn *big.Int, reason string) domain.SwapResult {
	observability.RecordSwap("failed")
	return domain.SwapResult{AmountIn: amountIn, Err: reason}
}

// DryRunExecutor routes swaps like the live executor but never touches
// the chain past the read-only quote.
type DryRunExecutor struct {
	quoter *Quoter
	weth   string
	log    logrus.FieldLogger
}

// NewDryRunExecutor creates a simulated executor.
func NewDryRunExecutor(quoter *Quoter, wethAddress string, log logrus.FieldLogger) *DryRunExecutor {
	return &DryRunExecutor{quoter: quoter, weth: wethAddress, log: log}
}

// BuyToken implements Executor.
func (e *DryRunExecutor) BuyToken(ctx context.Context, tokenAddress string, amountWei *big.Int) domain.SwapResult {
	return e.simulate(ctx, []string{e.weth, tokenAddress}, amountWei, weiToETH(amountWei))
}

// SellToken implements Executor.
func (e *DryRunExecutor) SellToken(ctx context.Context, tokenAddress string, amountTokens *big.Int) domain.SwapResult {
	return e.simulate(ctx, []string{tokenAddress, e.weth}, amountTokens, 0)
}

func (e *DryRunExecutor) simulate(ctx context.Context, path []string, amountIn *big.Int, amountETH float64) domain.SwapResult {
	route, err := e.quoter.BestRoute(ctx, path, amountIn, amountETH)
	if err != nil {
		return failedSwap(amountIn, fmt.Sprintf("no valid route: %v", err))
	}

	e.log.WithFields(logrus.Fields{
		"router":       route.Router,
		"amount_in":    amountIn.String(),
		"expected_out": route.ExpectedOut.String(),
	}).Info("dry run: would execute swap")
	observability.RecordSwap("dry_run")
	return domain.SwapResult{
		Success:   true,
		TxHash:    dryRunTxHash,
		AmountIn:  amountIn,
		AmountOut: route.ExpectedOut,
		DryRun:    true,
	}
}

// LiveExecutor signs and broadcasts real swap transactions.
type LiveExecutor struct {
	client   chain.Client
	wallet   *chain.Wallet
	quoter   *Quoter
	weth     string
	gasLimit uint64
	log      logrus.FieldLogger

	routerABI  abi.ABI
	approveABI abi.ABI
}

// NewLiveExecutor creates an executor that submits on-chain swaps.
func NewLiveExecutor(client chain.Client, wallet *chain.Wallet, quoter *Quoter, wethAddress string, gasLimit uint64, log logrus.FieldLogger) (*LiveExecutor, error) {
	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	approveABI, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return nil, fmt.Errorf("parse approve abi: %w", err)
	}
	return &LiveExecutor{
		client:     client,
		wallet:     wallet,
		quoter:     quoter,
		weth:       wethAddress,
		gasLimit:   gasLimit,
		log:        log,
		routerABI:  routerABI,
		approveABI: approveABI,
	}, nil
}

// BuyToken implements Executor: swapExactETHForTokens on the best router.
func (e *LiveExecutor) BuyToken(ctx context.Context, tokenAddress string, amountWei *big.Int) domain.SwapResult {
	path := []string{e.weth, tokenAddress}
	route, err := e.quoter.BestRoute(ctx, path, amountWei, weiToETH(amountWei))
	if err != nil {
		return failedSwap(amountWei, fmt.Sprintf("no valid route: %v", err))
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := e.routerABI.Pack("swapExactETHForTokens",
		MinAmountOut(route), toABIPath(path), common.HexToAddress(e.wallet.Address()), deadline)
	if err != nil {
		return failedSwap(amountWei, fmt.Sprintf("pack swap: %v", err))
	}

	return e.submit(ctx, route, route.RouterAddress, amountWei, data, amountWei)
}

// SellToken implements Executor: approve then swapExactTokensForETH.
func (e *LiveExecutor) SellToken(ctx context.Context, tokenAddress string, amountTokens *big.Int) domain.SwapResult {
	path := []string{tokenAddress, e.weth}
	route, err := e.quoter.BestRoute(ctx, path, amountTokens, 0)
	if err != nil {
		return failedSwap(amountTokens, fmt.Sprintf("no valid route: %v", err))
	}

	if err := e.approve(ctx, tokenAddress, route.RouterAddress); err != nil {
		return failedSwap(amountTokens, fmt.Sprintf("approve: %v", err))
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := e.routerABI.Pack("swapExactTokensForETH",
		amountTokens, MinAmountOut(route), toABIPath(path), common.HexToAddress(e.wallet.Address()), deadline)
	if err != nil {
		return failedSwap(amountTokens, fmt.Sprintf("pack swap: %v", err))
	}

	return e.submit(ctx, route, route.RouterAddress, big.NewInt(0), data, amountTokens)
}

// approve grants the router an unlimited allowance for the token. An
// unlimited allowance avoids a second approval on every exit.
func (e *LiveExecutor) approve(ctx context.Context, tokenAddress, spender string) error {
	data, err := e.approveABI.Pack("approve", common.HexToAddress(spender), maxUint256)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	receipt, _, err := e.send(ctx, tokenAddress, big.NewInt(0), data)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve transaction reverted")
	}
	return nil
}

func (e *LiveExecutor) submit(ctx context.Context, route domain.SwapRoute, to string, value *big.Int, data []byte, amountIn *big.Int) domain.SwapResult {
	receipt, txHash, err := e.send(ctx, to, value, data)
	if err != nil {
		return failedSwap(amountIn, err.Error())
	}

	result := domain.SwapResult{
		TxHash:   txHash,
		AmountIn: amountIn,
		GasUsed:  receipt.GasUsed,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Err = "swap transaction reverted"
		observability.RecordSwap("reverted")
		e.log.WithField("tx", txHash).Error("swap reverted")
		return result
	}

	result.Success = true
	result.AmountOut = route.ExpectedOut
	observability.RecordSwap("ok")
	e.log.WithFields(logrus.Fields{
		"router":   route.Router,
		"tx":       txHash,
		"gas_used": receipt.GasUsed,
	}).Info("swap executed")
	return result
}

// send builds, signs, broadcasts a transaction and waits for its receipt.
func (e *LiveExecutor) send(ctx context.Context, to string, value *big.Int, data []byte) (*types.Receipt, string, error) {
	nonce, err := e.client.NonceAt(ctx, e.wallet.Address())
	if err != nil {
		return nil, "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gas price: %w", err)
	}

	toAddr := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    value,
		Gas:      e.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := e.wallet.SignTx(tx, e.client.ChainID())
	if err != nil {
		return nil, "", fmt.Errorf("sign: %w", err)
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return nil, "", fmt.Errorf("broadcast: %w", err)
	}

	txHash := signed.Hash().Hex()
	receipt, err := e.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, txHash, fmt.Errorf("wait for receipt: %w", err)
	}
	return receipt, txHash, nil
}

func toABIPath(path []string) []common.Address {
	out := make([]common.Address, len(path))
	for i, p := range path {
		out[i] = common.HexToAddress(p)
	}
	return out
}

// weiToETH converts for the slippage tier lookup only; precision loss is
// irrelevant at tier granularity.
func weiToETH(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

var (
	_ Executor = (*DryRunExecutor)(nil)
	_ Executor = (*LiveExecutor)(nil)
)
