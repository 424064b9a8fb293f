package security

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
)

// Risk contributions of the bytecode pattern scan.
const (
	riskTransferRestriction = 0.3
	riskBlacklistFunctions  = 0.4
	riskPauseFunctions      = 0.2
	riskMintFunctions       = 0.1

	// Deployed code shorter than this (hex characters) is suspicious:
	// legitimate ERC-20s carry far more logic.
	minCodeHexLen = 1000
)

// BytecodeReader is the chain dependency of the bytecode check.
type BytecodeReader interface {
	Bytecode(ctx context.Context, address string) ([]byte, error)
}

// bytecodePatterns maps a finding to the 4-byte selectors (hex) whose
// presence in the deployed code triggers it. One match per group is
// enough.
var bytecodePatterns = []struct {
	name    string
	riskAdd float64
	hexSigs []string
}{
	{"transfer_restriction", riskTransferRestriction, []string{"a9059cbb", "23b872dd"}},
	{"blacklist_functions", riskBlacklistFunctions, []string{"f9f92be4", "608060405"}},
	{"pause_functions", riskPauseFunctions, []string{"8456cb59", "3f4ba83a"}},
	{"mint_functions", riskMintFunctions, []string{"40c10f19", "a0712d68"}},
	{"ownership_functions", 0, []string{"8da5cb5b", "f2fde38b"}},
}

// proxyPatterns are minimal-proxy byte sequences (EIP-1167 and variants).
var proxyPatterns = []string{"363d3d373d3d3d363d73", "5155f3363d3d373d3d3d"}

// BytecodeCheck scans deployed contract code for suspicious function
// selectors and structural red flags.
type BytecodeCheck struct {
	chain BytecodeReader
}

// NewBytecodeCheck creates the bytecode scan backed by a chain reader.
func NewBytecodeCheck(chain BytecodeReader) *BytecodeCheck {
	return &BytecodeCheck{chain: chain}
}

// Name implements Check.
func (c *BytecodeCheck) Name() CheckName { return CheckBytecode }

// Run implements Check.
func (c *BytecodeCheck) Run(ctx context.Context, address string) Outcome {
	code, err := c.chain.Bytecode(ctx, address)
	if err != nil {
		return failed(CheckBytecode, fmt.Sprintf("fetch bytecode: %v", err))
	}

	f := ScanBytecode(code)
	return completed(CheckBytecode, f)
}

// ScanBytecode evaluates deployed code against the pattern table. Split
// out so it can be exercised without a chain client.
func ScanBytecode(code []byte) Findings {
	codeHex := strings.ToLower(hex.EncodeToString(code))
	f := Findings{}

	for _, group := range bytecodePatterns {
		for _, sig := range group.hexSigs {
			if strings.Contains(codeHex, sig) {
				f.RiskAdd += group.riskAdd
				f.Flags = append(f.Flags, group.name)
				break
			}
		}
	}

	if len(codeHex) < minCodeHexLen {
		f.Flags = append(f.Flags, "small_contract")
	}

	for _, pattern := range proxyPatterns {
		if strings.Contains(codeHex, pattern) {
			f.Flags = append(f.Flags, "proxy_contract")
			break
		}
	}

	return f
}

// Compile-time interface check.
var _ Check = (*BytecodeCheck)(nil)
