package security

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Known LP locker contracts on Base.
var defaultLockers = map[string]string{
	"unicrypt":     "0x663A5C229c09b049E36dCc11a9B0d4a8Eb9db214",
	"team_finance": "0x71B5759d73262FBb223956913ecF4ecC51057641",
}

// balanceOf(address) selector.
var balanceOfSelector = common.Hex2Bytes("70a08231")

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, contract string, data []byte) ([]byte, error)
}

// LiquidityLockCheck probes known locker contracts for a balance of the
// token. Finding a lock is a positive signal; absence carries no risk on
// its own, new pairs often lock later.
type LiquidityLockCheck struct {
	caller  ContractCaller
	lockers map[string]string
}

// NewLiquidityLockCheck creates the lock probe over the given caller.
func NewLiquidityLockCheck(caller ContractCaller) *LiquidityLockCheck {
	return &LiquidityLockCheck{caller: caller, lockers: defaultLockers}
}

// Name implements Check.
func (c *LiquidityLockCheck) Name() CheckName { return CheckLiquidity }

// Run implements Check.
func (c *LiquidityLockCheck) Run(ctx context.Context, address string) Outcome {
	if !common.IsHexAddress(address) {
		return failed(CheckLiquidity, "not a hex address")
	}

	probed := 0
	var locked []string
	for name, locker := range c.lockers {
		data := make([]byte, 0, 36)
		data = append(data, balanceOfSelector...)
		data = append(data, common.LeftPadBytes(common.HexToAddress(locker).Bytes(), 32)...)

		out, err := c.caller.CallContract(ctx, address, data)
		if err != nil {
			continue
		}
		probed++
		if len(out) >= 32 && new(big.Int).SetBytes(out).Sign() > 0 {
			locked = append(locked, name)
		}
	}
	if probed == 0 {
		return failed(CheckLiquidity, "no locker reachable")
	}

	f := Findings{}
	if len(locked) > 0 {
		f.Flags = append(f.Flags, fmt.Sprintf("liquidity_locked:%s", strings.Join(locked, ",")))
	}
	return completed(CheckLiquidity, f)
}

// Compile-time interface check.
var _ Check = (*LiquidityLockCheck)(nil)
