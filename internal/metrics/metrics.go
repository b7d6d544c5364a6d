// Package metrics exposes Prometheus instrumentation for providers,
// reconciliation, the store and the implied volatility solver.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "optionlab/internal/errors"
)

var (
	// Provider metrics
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionlab_provider_requests_total",
			Help: "Total number of market data provider requests",
		},
		[]string{"provider", "method", "status"}, // status: success|error|missing|throttled
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionlab_provider_latency_seconds",
			Help:    "Market data provider latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"provider", "method"},
	)

	ProviderBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optionlab_provider_circuit_open",
			Help: "Provider circuit breaker state (0 closed, 0.5 half-open, 1 open)",
		},
		[]string{"provider"},
	)

	// Reconciliation metrics
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionlab_reconcile_runs_total",
			Help: "Total number of PnL reconciliations",
		},
		[]string{"status"}, // status: success|error|missing
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optionlab_reconcile_duration_seconds",
			Help:    "PnL reconciliation duration including data retrieval",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	PositionPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optionlab_position_pnl",
			Help: "Latest daily PnL of a tracked position",
		},
		[]string{"symbol", "position"},
	)

	// Store metrics
	TradeUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionlab_trade_upserts_total",
			Help: "Trade record writes by outcome",
		},
		[]string{"result"}, // result: inserted|replaced
	)

	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionlab_db_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionlab_db_query_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	// Solver metrics
	SolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionlab_iv_solver_runs_total",
			Help: "Implied volatility solves by outcome",
		},
		[]string{"status"}, // status: converged|not_converged|invalid
	)

	SolverIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optionlab_iv_solver_iterations",
			Help:    "Iterations used by converged implied volatility solves",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ProviderRequests)
		prometheus.MustRegister(ProviderLatency)
		prometheus.MustRegister(ProviderBreaker)

		prometheus.MustRegister(ReconcileRuns)
		prometheus.MustRegister(ReconcileDuration)
		prometheus.MustRegister(PositionPnL)

		prometheus.MustRegister(TradeUpserts)
		prometheus.MustRegister(DBQueries)
		prometheus.MustRegister(DBQueryDuration)

		prometheus.MustRegister(SolverRuns)
		prometheus.MustRegister(SolverIterations)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Status maps an error to a status label.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.Is(err, apperrors.ErrMissingMarketData), apperrors.Is(err, apperrors.ErrInsufficientData):
		return "missing"
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return "throttled"
	default:
		return "error"
	}
}

// SetBreakerState records a provider circuit breaker transition.
func SetBreakerState(provider, state string) {
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half_open":
		v = 0.5
	}
	ProviderBreaker.WithLabelValues(provider).Set(v)
}

// RecordReconcile records one reconciliation.
func RecordReconcile(duration time.Duration, err error) {
	ReconcileRuns.WithLabelValues(Status(err)).Inc()
	ReconcileDuration.Observe(duration.Seconds())
}

// RecordUpsert records a trade record write.
func RecordUpsert(replaced bool) {
	result := "inserted"
	if replaced {
		result = "replaced"
	}
	TradeUpserts.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database operation.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(operation, Status(err)).Inc()
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSolve records an implied volatility solve.
func RecordSolve(iterations int, err error) {
	switch {
	case err == nil:
		SolverRuns.WithLabelValues("converged").Inc()
		SolverIterations.Observe(float64(iterations))
	case apperrors.Is(err, apperrors.ErrNotConverged):
		SolverRuns.WithLabelValues("not_converged").Inc()
	default:
		SolverRuns.WithLabelValues("invalid").Inc()
	}
}
