package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "https://mainnet.base.org")
	t.Setenv("BASE_WEBSOCKET_URL", "wss://mainnet.base.org/ws")
	t.Setenv("DRY_RUN_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, 8.0, cfg.Sniper.MaxInvestmentUSD)
	assert.Equal(t, 2.0, cfg.Sniper.ProfitTarget)
	assert.Equal(t, 0.7, cfg.Sniper.StopLoss)
	assert.Equal(t, 0.01, cfg.Sniper.MinLiquidityETH)
	assert.Equal(t, 50, cfg.Sniper.MinHolders)
	assert.Equal(t, 100.0, cfg.Swing.MaxInvestmentUSD)
	assert.Equal(t, 1.5, cfg.Swing.ProfitTarget)
	assert.Equal(t, 0.85, cfg.Swing.StopLoss)
	assert.Equal(t, 24*time.Hour, cfg.Swing.RebalanceInterval)
	assert.Equal(t, time.Hour, cfg.Security.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, 2000.0, cfg.Pricing.ETHFallbackUSD)
	assert.NotEmpty(t, cfg.Swing.Universe)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "")
	t.Setenv("BASE_WEBSOCKET_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASE_RPC_URL")
	assert.Contains(t, err.Error(), "BASE_WEBSOCKET_URL")
}

func TestLoad_LiveModeRequiresWallet(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "https://mainnet.base.org")
	t.Setenv("BASE_WEBSOCKET_URL", "wss://mainnet.base.org/ws")
	t.Setenv("DRY_RUN_MODE", "false")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("WALLET_ADDRESS", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")
	assert.Contains(t, err.Error(), "WALLET_ADDRESS")
}

func TestValidate_Thresholds(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "https://mainnet.base.org")
	t.Setenv("BASE_WEBSOCKET_URL", "wss://mainnet.base.org/ws")
	t.Setenv("MEMECOIN_STOP_LOSS", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMECOIN_STOP_LOSS")
}

func TestParseUniverse(t *testing.T) {
	got := parseUniverse("AERO:0xabc, DEGEN:0xdef")
	require.Len(t, got, 2)
	assert.Equal(t, SwingToken{Symbol: "AERO", Address: "0xabc"}, got[0])
	assert.Equal(t, SwingToken{Symbol: "DEGEN", Address: "0xdef"}, got[1])

	assert.Nil(t, parseUniverse(""))
	assert.Empty(t, parseUniverse("garbage"))
}
