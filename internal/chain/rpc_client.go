package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/domain"
)

// erc20MetadataABI covers the read-only metadata surface of ERC-20.
const erc20MetadataABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// RPCClientOptions configures the RPC client.
type RPCClientOptions struct {
	// GasPriceCapWei bounds SuggestGasPrice. Zero disables the cap.
	GasPriceCapWei *big.Int
	// GasPriceSpeedup multiplies the node's suggestion. Zero means 1.0.
	GasPriceSpeedup float64
	// ReceiptPollInterval is how often WaitForReceipt polls. Defaults to 2s.
	ReceiptPollInterval time.Duration
}

// RPCClient implements Client over a JSON-RPC HTTP endpoint.
type RPCClient struct {
	eth      *ethclient.Client
	chainID  *big.Int
	erc20ABI abi.ABI
	opts     RPCClientOptions
	log      logrus.FieldLogger
}

// Compile-time interface check.
var _ Client = (*RPCClient)(nil)

// NewRPCClient dials the endpoint and verifies connectivity by reading
// the chain ID.
func NewRPCClient(ctx context.Context, endpoint string, opts RPCClientOptions, log logrus.FieldLogger) (*RPCClient, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20MetadataABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	if opts.ReceiptPollInterval == 0 {
		opts.ReceiptPollInterval = 2 * time.Second
	}
	if opts.GasPriceSpeedup == 0 {
		opts.GasPriceSpeedup = 1.0
	}

	return &RPCClient{
		eth:      eth,
		chainID:  chainID,
		erc20ABI: parsed,
		opts:     opts,
		log:      log.WithField("component", "chain"),
	}, nil
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.eth.Close()
}

// ChainID returns the connected chain's ID.
func (c *RPCClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// TokenMetadata reads ERC-20 metadata. Tokens with missing optional
// methods (name, symbol) produce zero values for those fields.
func (c *RPCClient) TokenMetadata(ctx context.Context, address string) (*TokenMetadata, error) {
	to := common.HexToAddress(address)
	meta := &TokenMetadata{}

	if err := c.callERC20(ctx, to, "decimals", &meta.Decimals); err != nil {
		// A contract without decimals is not a usable ERC-20.
		return nil, fmt.Errorf("read decimals of %s: %w", address, err)
	}
	if err := c.callERC20(ctx, to, "name", &meta.Name); err != nil {
		c.log.WithField("token", address).WithError(err).Debug("name call failed")
	}
	if err := c.callERC20(ctx, to, "symbol", &meta.Symbol); err != nil {
		c.log.WithField("token", address).WithError(err).Debug("symbol call failed")
	}
	var supply *big.Int
	if err := c.callERC20(ctx, to, "totalSupply", &supply); err != nil {
		c.log.WithField("token", address).WithError(err).Debug("totalSupply call failed")
	}
	meta.TotalSupply = supply

	return meta, nil
}

func (c *RPCClient) callERC20(ctx context.Context, to common.Address, method string, out interface{}) error {
	data, err := c.erc20ABI.Pack(method)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if err := c.erc20ABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

// Bytecode returns the deployed code at address.
func (c *RPCClient) Bytecode(ctx context.Context, address string) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("code at %s: %w", address, err)
	}
	return code, nil
}

// NativeBalance returns the wei balance of address.
func (c *RPCClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return bal, nil
}

// BlockNumber returns the latest block number.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// CallContract executes a read-only contract call.
func (c *RPCClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	addr := common.HexToAddress(to)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to, err)
	}
	return out, nil
}

// PendingTransaction fetches a transaction by hash.
func (c *RPCClient) PendingTransaction(ctx context.Context, hash string) (*domain.PendingTx, bool, error) {
	tx, pending, err := c.eth.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, false, fmt.Errorf("transaction %s: %w", hash, err)
	}

	from := ""
	if sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx); err == nil {
		from = sender.Hex()
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	return &domain.PendingTx{
		Hash:     tx.Hash().Hex(),
		From:     from,
		To:       to,
		Value:    tx.Value(),
		Input:    tx.Data(),
		GasPrice: tx.GasPrice(),
		SeenAt:   time.Now().UTC(),
	}, pending, nil
}

// SuggestGasPrice applies the speed-up multiplier to the node suggestion
// and clamps the result at the configured cap.
func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	price := ApplyGasPolicy(suggested, c.opts.GasPriceSpeedup, c.opts.GasPriceCapWei)
	return price, nil
}

// ApplyGasPolicy multiplies a suggested gas price by speedup and clamps
// it at maxPrice (when maxPrice is non-nil and positive).
func ApplyGasPolicy(suggested *big.Int, speedup float64, maxPrice *big.Int) *big.Int {
	price := new(big.Float).SetInt(suggested)
	price.Mul(price, big.NewFloat(speedup))
	result, _ := price.Int(nil)

	if maxPrice != nil && maxPrice.Sign() > 0 && result.Cmp(maxPrice) > 0 {
		return new(big.Int).Set(maxPrice)
	}
	return result
}

// NonceAt returns the pending nonce for the account.
func (c *RPCClient) NonceAt(ctx context.Context, address string) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("pending nonce of %s: %w", address, err)
	}
	return nonce, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("send transaction %s: %w", tx.Hash().Hex(), err)
	}
	return nil
}

// WaitForReceipt polls for the transaction receipt until mined or the
// context expires.
func (c *RPCClient) WaitForReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	ticker := time.NewTicker(c.opts.ReceiptPollInterval)
	defer ticker.Stop()

	h := common.HexToHash(hash)
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, h)
		if err == nil {
			return receipt, nil
		}
		if !receiptPending(err) {
			return nil, fmt.Errorf("receipt %s: %w", hash, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// receiptPending reports whether a receipt lookup error means the
// transaction is simply not mined yet. Survives client wrapping.
func receiptPending(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
