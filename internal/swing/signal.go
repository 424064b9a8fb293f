package swing

import (
	"time"

	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/indicator"
)

// RSI thresholds for oversold and overbought regimes.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// GenerateSignal runs the indicator set over the price history and folds
// the individual readings into one directional signal. RSI sets the
// initial direction; the remaining indicators add strength and may flip
// a hold, but never override an RSI-set direction.
func GenerateSignal(token config.SwingToken, prices []float64, minSamples int, w config.IndicatorWeights, now time.Time) (domain.Signal, error) {
	if len(prices) < minSamples {
		return domain.Signal{}, indicator.ErrInsufficientHistory
	}
	ind, err := indicator.Compute(prices)
	if err != nil {
		return domain.Signal{}, err
	}

	strength := 0.0
	direction := domain.SignalHold

	switch {
	case ind.RSI < rsiOversold:
		strength += w.RSI
		direction = domain.SignalBuy
	case ind.RSI > rsiOverbought:
		strength += w.RSI
		direction = domain.SignalSell
	}

	apply := func(sign int, weight float64) {
		switch {
		case sign > 0:
			strength += weight
			if direction != domain.SignalSell {
				direction = domain.SignalBuy
			}
		case sign < 0:
			strength += weight
			if direction != domain.SignalBuy {
				direction = domain.SignalSell
			}
		}
	}
	apply(ind.MACDSign, w.MACD)
	apply(ind.MASign, w.MA)
	apply(ind.BBSign, w.Bollinger)

	if ind.VolumeSign > 0 {
		strength += w.Volume
	}
	if strength > 1.0 {
		strength = 1.0
	}

	return domain.Signal{
		TokenAddress: domain.NormalizeAddress(token.Address),
		TokenSymbol:  token.Symbol,
		Direction:    direction,
		Strength:     strength,
		RSI:          ind.RSI,
		MACDSign:     ind.MACDSign,
		MASign:       ind.MASign,
		BollingerPos: bollingerPos(prices[len(prices)-1], ind),
		GeneratedAt:  now,
	}, nil
}

// bollingerPos places the current price inside the band: 0 at the lower
// band, 1 at the upper, clamped outside it.
func bollingerPos(price float64, ind indicator.Set) float64 {
	width := ind.BBUpper - ind.BBLower
	if width <= 0 {
		return 0.5
	}
	pos := (price - ind.BBLower) / width
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}
