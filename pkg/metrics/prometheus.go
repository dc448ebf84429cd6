package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Verdict/internal/domain/models"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	cycleDuration   *prometheus.HistogramVec
	signalsTotal    *prometheus.CounterVec
	blockedTotal    *prometheus.CounterVec
	feedErrors      *prometheus.CounterVec
	openPositions   prometheus.Gauge
	realizedProfit  *prometheus.CounterVec
	realizedLoss    *prometheus.CounterVec
	componentHealth *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdict_cycle_duration_seconds",
				Help:    "Duration of full evaluation cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_signals_total",
				Help: "Recommendations produced, by symbol and signal",
			},
			[]string{"symbol", "signal"},
		),
		blockedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_verification_blocked_total",
				Help: "Verification blocks, by reason",
			},
			[]string{"reason"},
		),
		feedErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_feed_errors_total",
				Help: "Soft feed failures, by feed",
			},
			[]string{"feed"},
		),
		openPositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "verdict_open_positions",
				Help: "Currently open positions across all sessions",
			},
		),
		realizedProfit: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_realized_profit_usd_total",
				Help: "Cumulative realized profit in USD, by symbol",
			},
			[]string{"symbol"},
		),
		realizedLoss: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_realized_loss_usd_total",
				Help: "Cumulative realized loss in USD (absolute), by symbol",
			},
			[]string{"symbol"},
		),
		componentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "verdict_component_health",
				Help: "Component health: 2 healthy, 1 degraded, 0 offline",
			},
			[]string{"component"},
		),
	}
}

func (r *Recorder) RecordCycle(symbol string, seconds float64) {
	r.cycleDuration.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordSignal(symbol string, signal models.Signal) {
	r.signalsTotal.WithLabelValues(symbol, string(signal)).Inc()
}

func (r *Recorder) RecordBlocked(reason string) {
	r.blockedTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordFeedError(feed string) {
	r.feedErrors.WithLabelValues(feed).Inc()
}

func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordRealizedPnL splits signed PnL across two counters. Counters reject
// negative increments, so losses are recorded as absolute values.
func (r *Recorder) RecordRealizedPnL(symbol string, usd float64) {
	if usd >= 0 {
		r.realizedProfit.WithLabelValues(symbol).Add(usd)
		return
	}
	r.realizedLoss.WithLabelValues(symbol).Add(-usd)
}

func (r *Recorder) RecordComponentHealth(component string, status models.HealthStatus) {
	var v float64
	switch status {
	case models.StatusHealthy:
		v = 2
	case models.StatusDegraded:
		v = 1
	}
	r.componentHealth.WithLabelValues(component).Set(v)
}
