// Package chain provides EVM connectivity: an RPC client for calls and
// transactions, a wallet for signing, and a websocket stream of pending
// mempool transactions.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"evm-sniper-bot/internal/domain"
)

// TokenMetadata is the on-chain ERC-20 metadata of a contract.
type TokenMetadata struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Client is the read/write interface to the chain. Implementations:
// RPCClient (live) and stub.Client (tests).
type Client interface {
	// TokenMetadata reads name, symbol, decimals and totalSupply from an
	// ERC-20 contract. Individual call failures leave zero values rather
	// than failing the whole read; an error means the contract could not
	// be reached at all.
	TokenMetadata(ctx context.Context, address string) (*TokenMetadata, error)

	// Bytecode returns the deployed code at address. Empty means the
	// address is not a contract.
	Bytecode(ctx context.Context, address string) ([]byte, error)

	// NativeBalance returns the native asset balance of address in wei.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)

	// BlockNumber returns the latest block number. Used as a liveness probe.
	BlockNumber(ctx context.Context) (uint64, error)

	// CallContract executes a read-only call against a contract.
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)

	// PendingTransaction fetches a transaction by hash. The bool reports
	// whether it is still pending.
	PendingTransaction(ctx context.Context, hash string) (*domain.PendingTx, bool, error)

	// SuggestGasPrice returns the gas price to use for the next
	// transaction, with the configured speed-up multiplier applied and
	// capped at the configured maximum.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// NonceAt returns the next nonce for the account.
	NonceAt(ctx context.Context, address string) (uint64, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// WaitForReceipt blocks until the transaction is mined or ctx expires.
	WaitForReceipt(ctx context.Context, hash string) (*types.Receipt, error)

	// ChainID returns the connected chain's ID.
	ChainID() *big.Int
}
