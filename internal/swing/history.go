// Package swing trades a fixed universe of established Base tokens on
// technical indicator signals, holding positions for hours to days
// rather than the sniper's minutes.
package swing

import (
	"sync"
	"time"

	"evm-sniper-bot/internal/domain"
)

// HistoryBook keeps a bounded rolling price history per token. Samples
// older than the window are discarded on every append.
type HistoryBook struct {
	window time.Duration

	mu      sync.Mutex
	samples map[string][]domain.PricePoint
}

// NewHistoryBook creates an empty book with the given retention window.
func NewHistoryBook(window time.Duration) *HistoryBook {
	return &HistoryBook{
		window:  window,
		samples: make(map[string][]domain.PricePoint),
	}
}

// Append records one price sample for the token and trims the window.
func (b *HistoryBook) Append(tokenAddress string, price, volume float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	points := append(b.samples[tokenAddress], domain.PricePoint{
		Price:     price,
		Volume:    volume,
		Timestamp: at,
	})

	cutoff := at.Add(-b.window)
	start := 0
	for start < len(points) && !points[start].Timestamp.After(cutoff) {
		start++
	}
	b.samples[tokenAddress] = points[start:]
}

// Prices returns the token's samples as a chronological price slice.
func (b *HistoryBook) Prices(tokenAddress string) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	points := b.samples[tokenAddress]
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// Len returns the number of retained samples for the token.
func (b *HistoryBook) Len(tokenAddress string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples[tokenAddress])
}
