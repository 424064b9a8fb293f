// Package indicator computes the technical indicators feeding the swing
// strategy's signals. All functions are pure over a price series ordered
// oldest to newest.
package indicator

import (
	"errors"
	"math"
)

// Default periods.
const (
	RSIPeriod      = 14
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignalSpan = 9
	SMAShortWindow = 20
	SMALongWindow  = 50
	BollingerSpan  = 20
	BollingerStdev = 2.0
)

// MinSamples is the shortest series the full indicator set is defined on.
const MinSamples = SMALongWindow

// ErrInsufficientHistory is returned when the series is too short for the
// slowest indicator.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Set is one computed snapshot of all indicators.
type Set struct {
	RSI      float64
	MACDLine float64
	// MACDSign is +1 when the MACD line is above its signal line, -1 below.
	MACDSign int
	SMA20    float64
	SMA50    float64
	// MASign is +1 when the last price is above SMA20, -1 below or equal.
	MASign  int
	BBUpper float64
	BBLower float64
	// BBSign is +1 at or under the lower band, -1 at or over the upper, 0 between.
	BBSign int
	// VolumeSign stays 0 until per-trade volume data is wired in.
	VolumeSign int
}

// Compute evaluates the full indicator set over the series.
func Compute(prices []float64) (Set, error) {
	if len(prices) < MinSamples {
		return Set{}, ErrInsufficientHistory
	}

	current := prices[len(prices)-1]
	macdLine, signalLine := MACD(prices, MACDFast, MACDSlow, MACDSignalSpan)
	upper, lower := Bollinger(prices, BollingerSpan, BollingerStdev)

	s := Set{
		RSI:      RSI(prices, RSIPeriod),
		MACDLine: macdLine,
		SMA20:    SMA(prices, SMAShortWindow),
		SMA50:    SMA(prices, SMALongWindow),
		BBUpper:  upper,
		BBLower:  lower,
	}

	if macdLine > signalLine {
		s.MACDSign = 1
	} else {
		s.MACDSign = -1
	}
	if current > s.SMA20 {
		s.MASign = 1
	} else {
		s.MASign = -1
	}
	switch {
	case current <= lower:
		s.BBSign = 1
	case current >= upper:
		s.BBSign = -1
	}
	return s, nil
}

// RSI is the relative strength index over the trailing period, using
// simple averages of gains and losses. Returns 50 when undefined.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}

	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	if loss == 0 {
		if gain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := gain / loss
	return 100.0 - 100.0/(1.0+rs)
}

// EMA is the exponential moving average with smoothing 2/(span+1),
// seeded from the first price.
func EMA(prices []float64, span int) float64 {
	if len(prices) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(span) + 1.0)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = alpha*p + (1-alpha)*ema
	}
	return ema
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal
// line (EMA of the MACD series).
func MACD(prices []float64, fast, slow, span int) (line, signal float64) {
	if len(prices) == 0 {
		return 0, 0
	}

	alphaFast := 2.0 / (float64(fast) + 1.0)
	alphaSlow := 2.0 / (float64(slow) + 1.0)
	alphaSig := 2.0 / (float64(span) + 1.0)

	emaFast := prices[0]
	emaSlow := prices[0]
	macd := 0.0
	sig := 0.0
	for i, p := range prices {
		if i > 0 {
			emaFast = alphaFast*p + (1-alphaFast)*emaFast
			emaSlow = alphaSlow*p + (1-alphaSlow)*emaSlow
		}
		macd = emaFast - emaSlow
		if i == 0 {
			sig = macd
		} else {
			sig = alphaSig*macd + (1-alphaSig)*sig
		}
	}
	return macd, sig
}

// SMA is the simple moving average over the trailing window.
func SMA(prices []float64, window int) float64 {
	if len(prices) < window || window <= 0 {
		return 0
	}
	var sum float64
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	return sum / float64(window)
}

// Bollinger returns the upper and lower bands: SMA ± stdev·σ over the
// trailing period.
func Bollinger(prices []float64, period int, stdev float64) (upper, lower float64) {
	if len(prices) < period {
		return 0, 0
	}
	window := prices[len(prices)-period:]
	mean := SMA(prices, period)

	var variance float64
	for _, p := range window {
		d := p - mean
		variance += d * d
	}
	// Sample standard deviation.
	variance /= float64(period - 1)
	sigma := math.Sqrt(variance)

	return mean + stdev*sigma, mean - stdev*sigma
}
