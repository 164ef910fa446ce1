package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Replay metrics
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_ticks_total",
			Help: "Total number of ticks replayed",
		},
		[]string{"asset_class"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Total number of closed trades by exit reason",
		},
		[]string{"reason"},
	)

	skippedBuysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_skipped_buys_total",
			Help: "Buy signals skipped because the bet bought zero units",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_errors_total",
			Help: "Total number of absorbed errors by category",
		},
		[]string{"category"},
	)

	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Total number of runs by status",
		},
		[]string{"status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Distribution of run wall-clock durations",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"status"},
	)

	instrumentsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtest_instruments_in_flight",
			Help: "Instruments currently being replayed",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(skippedBuysTotal)
	prometheus.MustRegister(errorsTotal)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(instrumentsInFlight)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTicks adds replayed ticks for an asset class
func RecordTicks(assetClass string, n int) {
	ticksTotal.WithLabelValues(assetClass).Add(float64(n))
}

// RecordTrade records one closed trade
func RecordTrade(reasonCode int) {
	tradesTotal.WithLabelValues(strconv.Itoa(reasonCode)).Inc()
}

// RecordSkippedBuys adds zero-quantity buy signals
func RecordSkippedBuys(n int) {
	skippedBuysTotal.Add(float64(n))
}

// RecordErrors adds absorbed errors of one category
func RecordErrors(category string, n int) {
	errorsTotal.WithLabelValues(category).Add(float64(n))
}

// RecordRun records a finished run
func RecordRun(status string, d time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// InstrumentStarted marks an instrument replay as in flight
func InstrumentStarted() {
	instrumentsInFlight.Inc()
}

// InstrumentFinished marks an instrument replay as done
func InstrumentFinished() {
	instrumentsInFlight.Dec()
}
