package domain

import "time"

// SignalDirection is the trade direction suggested by indicator analysis.
type SignalDirection string

const (
	SignalBuy  SignalDirection = "buy"
	SignalSell SignalDirection = "sell"
	SignalHold SignalDirection = "hold"
)

// String returns the string representation of SignalDirection.
func (d SignalDirection) String() string {
	return string(d)
}

// Signal is the outcome of one indicator pass over a token's price history.
type Signal struct {
	TokenAddress string
	TokenSymbol  string
	Direction    SignalDirection
	Strength     float64 // 0..1, sum of agreeing indicator weights
	RSI          float64
	MACDSign     int // +1 bullish crossover, -1 bearish, 0 neutral
	MASign       int // +1 price above both moving averages, -1 below
	BollingerPos float64 // 0 at lower band, 1 at upper band
	GeneratedAt  time.Time
}

// PricePoint is one sample in a token's rolling price history.
type PricePoint struct {
	Price     float64
	Volume    float64
	Timestamp time.Time
}
