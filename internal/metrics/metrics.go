// Package metrics exposes Prometheus collectors for backtest runs and
// parameter sweeps.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vecbt"

// Run outcome labels.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	barsProcessed     *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	barsPerSecond     *prometheus.GaugeVec
	tradesTotal       *prometheus.CounterVec
	sweepCombinations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of backtest runs",
			},
			[]string{"strategy", "status"},
		),
		barsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_processed_total",
				Help:      "Total number of bars replayed by completed runs",
			},
			[]string{"strategy"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Backtest run wall-clock duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"strategy"},
		),
		barsPerSecond: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bars_per_second",
				Help:      "Throughput of the most recent run",
			},
			[]string{"strategy"},
		),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of simulated round-trip trades",
			},
			[]string{"strategy"},
		),
		sweepCombinations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_combinations_total",
				Help:      "Total number of sweep combinations evaluated",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.barsProcessed,
		m.runDuration,
		m.barsPerSecond,
		m.tradesTotal,
		m.sweepCombinations,
	)
	return m
}

// RecordRun records a completed run.
func (m *Metrics) RecordRun(strategy string, bars, trades int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(strategy, StatusOK).Inc()
	m.barsProcessed.WithLabelValues(strategy).Add(float64(bars))
	m.tradesTotal.WithLabelValues(strategy).Add(float64(trades))
	m.runDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if s := elapsed.Seconds(); s > 0 {
		m.barsPerSecond.WithLabelValues(strategy).Set(float64(bars) / s)
	}
}

// RecordFailure records a run that did not complete. status is StatusInvalid
// or StatusError.
func (m *Metrics) RecordFailure(strategy, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(strategy, status).Inc()
}

// RecordCombination records one evaluated sweep combination.
func (m *Metrics) RecordCombination(status string) {
	if m == nil {
		return
	}
	m.sweepCombinations.WithLabelValues(status).Inc()
}

// Handler serves the metrics in g. A nil g serves the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
