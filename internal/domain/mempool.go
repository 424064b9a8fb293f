package domain

import (
	"math/big"
	"time"
)

// PendingTx is a transaction observed in the mempool before inclusion.
type PendingTx struct {
	Hash     string
	From     string
	To       string // empty for contract creation
	Value    *big.Int
	Input    []byte // calldata
	GasPrice *big.Int
	SeenAt   time.Time
}

// IsContractCreation reports whether the transaction deploys a contract.
func (tx PendingTx) IsContractCreation() bool {
	return tx.To == "" && len(tx.Input) > 0
}

// MethodID returns the 4-byte function selector of the calldata, or nil
// if the input is too short.
func (tx PendingTx) MethodID() []byte {
	if len(tx.Input) < 4 {
		return nil
	}
	return tx.Input[:4]
}
