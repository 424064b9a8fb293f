// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Mempool metrics
	PendingTxSeen       prometheus.Counter
	PendingTxClassified *prometheus.CounterVec
	MempoolDropped      prometheus.Counter

	// Security metrics
	TokensAnalyzed    prometheus.Counter
	AnalysisCacheHits prometheus.Counter
	TokensBlacklisted prometheus.Counter
	CheckOutcomes     *prometheus.CounterVec
	CheckLatency      *prometheus.HistogramVec

	// Pricing metrics
	PriceLookups   *prometheus.CounterVec
	PriceCacheHits prometheus.Counter

	// Trading metrics
	OpportunitiesDetected prometheus.Counter
	OpportunitiesSkipped  *prometheus.CounterVec
	PositionsOpened       *prometheus.CounterVec
	PositionsClosed       *prometheus.CounterVec
	SwapsExecuted         *prometheus.CounterVec
	ActivePositions       *prometheus.GaugeVec
	PortfolioValueUSD     prometheus.Gauge
	RealizedPnLUSD        prometheus.Gauge

	// Health metrics
	LastMempoolEvent prometheus.Gauge
	RPCHealthy       prometheus.Gauge
	UptimeSeconds    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "evm_sniper_bot"
	}

	return &Metrics{
		// Mempool metrics
		PendingTxSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "pending_tx_seen_total",
			Help:      "Total number of pending transactions observed",
		}),
		PendingTxClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "pending_tx_classified_total",
			Help:      "Total number of pending transactions classified by kind",
		}, []string{"kind"}),
		MempoolDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "dropped_total",
			Help:      "Total number of pending tx hashes dropped under backpressure",
		}),

		// Security metrics
		TokensAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "tokens_analyzed_total",
			Help:      "Total number of security analyses performed",
		}),
		AnalysisCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "analysis_cache_hits_total",
			Help:      "Total number of analyses served from cache",
		}),
		TokensBlacklisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "tokens_blacklisted_total",
			Help:      "Total number of tokens added to the blacklist",
		}),
		CheckOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "check_outcomes_total",
			Help:      "Security check outcomes by check name and status",
		}, []string{"check", "status"}),
		CheckLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "check_latency_seconds",
			Help:      "Security check latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"check"}),

		// Pricing metrics
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Price lookups by kind and status",
		}, []string{"kind", "status"}),
		PriceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Total number of price lookups served from cache",
		}),

		// Trading metrics
		OpportunitiesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sniper",
			Name:      "opportunities_detected_total",
			Help:      "Total number of snipe opportunities detected",
		}),
		OpportunitiesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sniper",
			Name:      "opportunities_skipped_total",
			Help:      "Total number of opportunities skipped by reason",
		}, []string{"reason"}),
		PositionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by strategy",
		}, []string{"strategy"}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dex",
			Name:      "swaps_executed_total",
			Help:      "Total number of swap attempts by status",
		}, []string{"status"}),
		ActivePositions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "active_positions",
			Help:      "Current number of active positions by strategy",
		}, []string{"strategy"}),
		PortfolioValueUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "portfolio_value_usd",
			Help:      "Current total portfolio value in USD",
		}),
		RealizedPnLUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl_usd",
			Help:      "Cumulative realized profit and loss in USD",
		}),

		// Health metrics
		LastMempoolEvent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_mempool_event_timestamp",
			Help:      "Unix timestamp of the last mempool event processed",
		}),
		RPCHealthy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "rpc_healthy",
			Help:      "1 when the RPC endpoint answers the liveness probe",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPendingTx increments the pending transactions counter.
func RecordPendingTx() {
	DefaultMetrics.PendingTxSeen.Inc()
}

// RecordClassified records a classified mempool transaction.
func RecordClassified(kind string) {
	DefaultMetrics.PendingTxClassified.WithLabelValues(kind).Inc()
}

// RecordAnalysis increments the analyses counter.
func RecordAnalysis() {
	DefaultMetrics.TokensAnalyzed.Inc()
}

// RecordAnalysisCacheHit increments the analysis cache hit counter.
func RecordAnalysisCacheHit() {
	DefaultMetrics.AnalysisCacheHits.Inc()
}

// RecordBlacklisted increments the blacklist counter.
func RecordBlacklisted() {
	DefaultMetrics.TokensBlacklisted.Inc()
}

// RecordCheck records one security check outcome and its latency.
func RecordCheck(check, status string, seconds float64) {
	DefaultMetrics.CheckOutcomes.WithLabelValues(check, status).Inc()
	DefaultMetrics.CheckLatency.WithLabelValues(check).Observe(seconds)
}

// RecordPriceLookup records a price lookup.
func RecordPriceLookup(kind, status string) {
	DefaultMetrics.PriceLookups.WithLabelValues(kind, status).Inc()
}

// RecordPriceCacheHit increments the price cache hit counter.
func RecordPriceCacheHit() {
	DefaultMetrics.PriceCacheHits.Inc()
}

// RecordOpportunity increments the opportunities detected counter.
func RecordOpportunity() {
	DefaultMetrics.OpportunitiesDetected.Inc()
}

// RecordOpportunitySkipped records a skipped opportunity.
func RecordOpportunitySkipped(reason string) {
	DefaultMetrics.OpportunitiesSkipped.WithLabelValues(reason).Inc()
}

// RecordPositionOpened increments the positions opened counter.
func RecordPositionOpened(strategy string) {
	DefaultMetrics.PositionsOpened.WithLabelValues(strategy).Inc()
}

// RecordPositionClosed increments the positions closed counter.
func RecordPositionClosed(strategy, outcome string) {
	DefaultMetrics.PositionsClosed.WithLabelValues(strategy, outcome).Inc()
}

// RecordSwap records a swap attempt.
func RecordSwap(status string) {
	DefaultMetrics.SwapsExecuted.WithLabelValues(status).Inc()
}

// SetActivePositions updates the active positions gauge for a strategy.
func SetActivePositions(strategy string, n int) {
	DefaultMetrics.ActivePositions.WithLabelValues(strategy).Set(float64(n))
}

// SetPortfolioValue updates the portfolio value gauge.
func SetPortfolioValue(usd float64) {
	DefaultMetrics.PortfolioValueUSD.Set(usd)
}

// SetRealizedPnL updates the realized PnL gauge.
func SetRealizedPnL(usd float64) {
	DefaultMetrics.RealizedPnLUSD.Set(usd)
}

// SetRPCHealthy updates the RPC liveness gauge.
func SetRPCHealthy(healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	DefaultMetrics.RPCHealthy.Set(v)
}

// SetLastMempoolEvent records when the mempool last produced an event.
func SetLastMempoolEvent(at time.Time) {
	DefaultMetrics.LastMempoolEvent.Set(float64(at.Unix()))
}

// AddUptime adds elapsed seconds to the uptime counter.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
