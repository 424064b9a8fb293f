// Package stub provides an in-memory chain.Client for tests.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/domain"
)

// ErrNotFound is returned when a requested object is not configured.
var ErrNotFound = errors.New("not found")

// Client implements chain.Client from fixture maps. All fields may be
// populated directly; zero-value maps behave as empty.
type Client struct {
	mu sync.Mutex

	Metadata     map[string]*chain.TokenMetadata
	Bytecodes    map[string][]byte
	Balances     map[string]*big.Int
	CallResults  map[string][]byte // keyed by contract address
	Transactions map[string]*domain.PendingTx
	Receipts     map[string]*types.Receipt
	GasPrice     *big.Int
	Block        uint64
	Chain        *big.Int

	// Err, when set, is returned by every method. Used to exercise
	// failure paths.
	Err error

	// SentTxs records transactions passed to SendTransaction.
	SentTxs []*types.Transaction

	// DefaultReceipt is returned by WaitForReceipt for hashes missing
	// from Receipts. Saves tests from predicting signed tx hashes.
	DefaultReceipt *types.Receipt

	// Calls counts method invocations by name.
	Calls map[string]int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		Metadata:     make(map[string]*chain.TokenMetadata),
		Bytecodes:    make(map[string][]byte),
		Balances:     make(map[string]*big.Int),
		CallResults:  make(map[string][]byte),
		Transactions: make(map[string]*domain.PendingTx),
		Receipts:     make(map[string]*types.Receipt),
		GasPrice:     big.NewInt(1_000_000_000),
		Chain:        big.NewInt(8453),
		Calls:        make(map[string]int),
	}
}

// Compile-time interface check.
var _ chain.Client = (*Client)(nil)

func (c *Client) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Err
}

// CallCount returns how many times the named method was invoked.
func (c *Client) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// TokenMetadata returns the configured metadata for address.
func (c *Client) TokenMetadata(_ context.Context, address string) (*chain.TokenMetadata, error) {
	if err := c.record("TokenMetadata"); err != nil {
		return nil, err
	}
	m, ok := c.Metadata[address]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Bytecode returns the configured bytecode for address.
func (c *Client) Bytecode(_ context.Context, address string) ([]byte, error) {
	if err := c.record("Bytecode"); err != nil {
		return nil, err
	}
	return c.Bytecodes[address], nil
}

// NativeBalance returns the configured balance for address.
func (c *Client) NativeBalance(_ context.Context, address string) (*big.Int, error) {
	if err := c.record("NativeBalance"); err != nil {
		return nil, err
	}
	bal, ok := c.Balances[address]
	if !ok {
		return big.NewInt(0), nil
	}
	return bal, nil
}

// BlockNumber returns the configured block height.
func (c *Client) BlockNumber(context.Context) (uint64, error) {
	if err := c.record("BlockNumber"); err != nil {
		return 0, err
	}
	return c.Block, nil
}

// CallContract returns the configured result for the contract address.
func (c *Client) CallContract(_ context.Context, to string, _ []byte) ([]byte, error) {
	if err := c.record("CallContract"); err != nil {
		return nil, err
	}
	out, ok := c.CallResults[to]
	if !ok {
		return nil, ErrNotFound
	}
	return out, nil
}

// PendingTransaction returns the configured transaction for hash.
func (c *Client) PendingTransaction(_ context.Context, hash string) (*domain.PendingTx, bool, error) {
	if err := c.record("PendingTransaction"); err != nil {
		return nil, false, err
	}
	tx, ok := c.Transactions[hash]
	if !ok {
		return nil, false, ErrNotFound
	}
	return tx, true, nil
}

// SuggestGasPrice returns the configured gas price.
func (c *Client) SuggestGasPrice(context.Context) (*big.Int, error) {
	if err := c.record("SuggestGasPrice"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.GasPrice), nil
}

// NonceAt always returns nonce 0.
func (c *Client) NonceAt(context.Context, string) (uint64, error) {
	if err := c.record("NonceAt"); err != nil {
		return 0, err
	}
	return 0, nil
}

// SendTransaction records the transaction.
func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if err := c.record("SendTransaction"); err != nil {
		return err
	}
	c.mu.Lock()
	c.SentTxs = append(c.SentTxs, tx)
	c.mu.Unlock()
	return nil
}

// WaitForReceipt returns the configured receipt for hash.
func (c *Client) WaitForReceipt(_ context.Context, hash string) (*types.Receipt, error) {
	if err := c.record("WaitForReceipt"); err != nil {
		return nil, err
	}
	r, ok := c.Receipts[hash]
	if !ok {
		if c.DefaultReceipt != nil {
			return c.DefaultReceipt, nil
		}
		return nil, ErrNotFound
	}
	return r, nil
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.Chain)
}
