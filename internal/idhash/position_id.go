// Package idhash derives deterministic identifiers from the fields that
// make an entity unique.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"evm-sniper-bot/internal/domain"
)

// ComputePositionID computes a deterministic position id using SHA256.
// Formula: SHA256(strategy|token|opened_at_unix_nano)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(strategy domain.StrategyName, tokenAddress string, openedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", string(strategy), tokenAddress, openedAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
