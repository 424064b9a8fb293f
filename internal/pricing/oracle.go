package pricing

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/pkg/cache"
)

// Cache key prefixes; the key always includes the quote kind so an ETH
// quote never masquerades as a USD one.
const (
	kindETH    = "eth"
	kindUSD    = "usd"
	ethUSDKey  = "ethusd:"
	quoteJoint = ":"
)

// Oracle aggregates token prices across DEX routers and the reference
// asset's fiat price across external APIs. Every quote is cached with a
// short TTL. A single source failing is excluded, never fatal.
type Oracle struct {
	dexSources  []DexSource
	fiatSources []FiatSource
	quotes      *cache.TTLCache[string, float64]
	fallbackUSD float64
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewOracle creates an oracle over the given sources.
func NewOracle(dex []DexSource, fiat []FiatSource, cacheTTL time.Duration, fallbackUSD float64, log logrus.FieldLogger) *Oracle {
	return &Oracle{
		dexSources:  dex,
		fiatSources: fiat,
		quotes:      cache.New[string, float64](cacheTTL),
		fallbackUSD: fallbackUSD,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (o *Oracle) WithClock(now func() time.Time) *Oracle {
	o.now = now
	o.quotes.WithClock(now)
	return o
}

// TokenPriceETH returns the median of successful DEX quotes for one whole
// token, in ETH. ok is false when no source answered.
func (o *Oracle) TokenPriceETH(ctx context.Context, tokenAddress string) (float64, bool) {
	addr := domain.NormalizeAddress(tokenAddress)
	key := kindETH + quoteJoint + addr
	if price, ok := o.quotes.Get(key); ok {
		observability.RecordPriceCacheHit()
		return price, true
	}

	var prices []float64
	for _, src := range o.dexSources {
		price, err := src.TokenPriceETH(ctx, addr)
		if err != nil {
			o.log.WithFields(logrus.Fields{
				"source": src.Name(),
				"token":  addr,
			}).WithError(err).Debug("dex quote failed")
			continue
		}
		prices = append(prices, price)
	}
	if len(prices) == 0 {
		observability.RecordPriceLookup(kindETH, "miss")
		return 0, false
	}

	price := median(prices)
	o.quotes.Set(key, price, 0)
	observability.RecordPriceLookup(kindETH, "ok")
	return price, true
}

// TokenPriceUSD is TokenPriceETH converted at the current ETH/USD rate.
func (o *Oracle) TokenPriceUSD(ctx context.Context, tokenAddress string) (float64, bool) {
	addr := domain.NormalizeAddress(tokenAddress)
	key := kindUSD + quoteJoint + addr
	if price, ok := o.quotes.Get(key); ok {
		observability.RecordPriceCacheHit()
		return price, true
	}

	priceETH, ok := o.TokenPriceETH(ctx, addr)
	if !ok {
		observability.RecordPriceLookup(kindUSD, "miss")
		return 0, false
	}

	price := priceETH * o.ETHPriceUSD(ctx)
	o.quotes.Set(key, price, 0)
	observability.RecordPriceLookup(kindUSD, "ok")
	return price, true
}

// ETHPriceUSD returns the mean of the fiat sources, or the configured
// fallback when every source fails. Never fails outright: the strategies
// need some conversion rate to size positions.
func (o *Oracle) ETHPriceUSD(ctx context.Context) float64 {
	if price, ok := o.quotes.Get(ethUSDKey); ok {
		observability.RecordPriceCacheHit()
		return price
	}

	var sum float64
	count := 0
	for _, src := range o.fiatSources {
		price, err := src.ETHPriceUSD(ctx)
		if err != nil {
			o.log.WithField("source", src.Name()).WithError(err).Debug("fiat quote failed")
			continue
		}
		sum += price
		count++
	}
	if count == 0 {
		o.log.WithField("fallback", o.fallbackUSD).Warn("no fiat source reachable, using fallback ETH price")
		observability.RecordPriceLookup("fiat", "fallback")
		return o.fallbackUSD
	}

	price := sum / float64(count)
	o.quotes.Set(ethUSDKey, price, 0)
	observability.RecordPriceLookup("fiat", "ok")
	return price
}

// ClearCache drops every cached quote.
func (o *Oracle) ClearCache() {
	o.quotes.Clear()
}

// median picks the middle element of the sorted prices (upper middle for
// even counts), damping a single outlier source.
func median(prices []float64) float64 {
	sort.Float64s(prices)
	return prices[len(prices)/2]
}
