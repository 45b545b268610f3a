// Package metrics exposes clearing run statistics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"market-clearing/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	steps         *prometheus.CounterVec
	solveDuration *prometheus.HistogramVec
	solveErrors   *prometheus.CounterVec
	runs          *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_clearing_steps_total",
			Help: "Cleared time steps by strategy and price status.",
		}, []string{"strategy", "status"}),
		solveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_clearing_solve_duration_seconds",
			Help:    "Wall time of a single solver call.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		solveErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_clearing_solve_errors_total",
			Help: "Solver calls that ended in an error, by kind.",
		}, []string{"strategy", "kind"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_clearing_runs_total",
			Help: "Completed clearing runs by strategy and result.",
		}, []string{"strategy", "result"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "market_clearing_last_price",
			Help: "Price of the most recent time step with a price, per strategy.",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) ObserveStep(strategy string, c model.Clearing) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(strategy, string(c.Status)).Inc()
	if c.HasPrice() {
		m.lastPrice.WithLabelValues(strategy).Set(c.Price)
	}
}

func (m *Metrics) ObserveSolve(strategy string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(strategy).Observe(d.Seconds())
	if err != nil {
		m.solveErrors.WithLabelValues(strategy, ErrorKind(err)).Inc()
	}
}

func (m *Metrics) ObserveRun(strategy string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ErrorKind(err)
	}
	m.runs.WithLabelValues(strategy, result).Inc()
}

// ErrorKind maps an error onto a short label value.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrSolverTimeout):
		return "timeout"
	case errors.Is(err, model.ErrSolverFailure):
		return "solver_failure"
	case errors.Is(err, model.ErrInfeasible):
		return "infeasible"
	case errors.Is(err, model.ErrDomain):
		return "domain"
	case errors.Is(err, model.ErrLookup):
		return "lookup"
	default:
		return "other"
	}
}
