package swing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/indicator"
)

var testToken = config.SwingToken{Symbol: "AERO", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631"}

func defaultWeights() config.IndicatorWeights {
	return config.IndicatorWeights{RSI: 0.3, MACD: 0.2, MA: 0.2, Bollinger: 0.2, Volume: 0.1}
}

func trend(start, step float64, n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}
	return prices
}

func TestGenerateSignal_InsufficientHistory(t *testing.T) {
	_, err := GenerateSignal(testToken, trend(100, -0.5, 30), 50, defaultWeights(), time.Now())
	assert.ErrorIs(t, err, indicator.ErrInsufficientHistory)
}

func TestGenerateSignal_DowntrendIsContrarianBuy(t *testing.T) {
	// Steady decline: RSI deeply oversold sets the direction, the
	// trend-following indicators add strength without flipping it.
	signal, err := GenerateSignal(testToken, trend(100, -0.5, 60), 50, defaultWeights(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.SignalBuy, signal.Direction)
	// RSI 0.3, MACD 0.2, MA 0.2; the last price sits inside the
	// Bollinger band on a linear trend.
	assert.InDelta(t, 0.7, signal.Strength, 1e-9)
	assert.Less(t, signal.RSI, rsiOversold)
	assert.Equal(t, -1, signal.MACDSign)
	assert.Equal(t, -1, signal.MASign)
	assert.Less(t, signal.BollingerPos, 0.2)
}

func TestGenerateSignal_UptrendIsContrarianSell(t *testing.T) {
	signal, err := GenerateSignal(testToken, trend(100, 0.5, 60), 50, defaultWeights(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.SignalSell, signal.Direction)
	assert.InDelta(t, 0.7, signal.Strength, 1e-9)
	assert.Greater(t, signal.RSI, rsiOverbought)
	assert.Equal(t, 1, signal.MACDSign)
	assert.Equal(t, 1, signal.MASign)
	assert.Greater(t, signal.BollingerPos, 0.8)
}

func TestGenerateSignal_CarriesTokenIdentity(t *testing.T) {
	signal, err := GenerateSignal(testToken, trend(100, -0.5, 60), 50, defaultWeights(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.NormalizeAddress(testToken.Address), signal.TokenAddress)
	assert.Equal(t, "AERO", signal.TokenSymbol)
}

func TestBollingerPos(t *testing.T) {
	ind := indicator.Set{BBLower: 90, BBUpper: 110}

	assert.InDelta(t, 0.5, bollingerPos(100, ind), 1e-9)
	assert.InDelta(t, 0, bollingerPos(80, ind), 1e-9)
	assert.InDelta(t, 1, bollingerPos(120, ind), 1e-9)

	// Collapsed band on flat history.
	assert.InDelta(t, 0.5, bollingerPos(100, indicator.Set{BBLower: 100, BBUpper: 100}), 1e-9)
}
