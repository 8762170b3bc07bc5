package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rgehrsitz/nrtax/internal/domain"
)

const (
	outcomeComputed  = "computed"
	outcomeInvalid   = "invalid_input"
	outcomeNoRuleset = "no_ruleset"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// Metrics provides observability for batch runs. Each Metrics owns its
// registry, so runs never share counters.
type Metrics struct {
	registry *prometheus.Registry

	// Returns processed by outcome and residency status
	Returns *prometheus.CounterVec

	// Per-return computation latency
	ComputeLatency prometheus.Histogram

	// Settlement amounts by direction
	Settlement *prometheus.CounterVec

	// Concurrent workers configured for the run
	Workers prometheus.Gauge
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Returns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nrtax_batch_returns_total",
			Help: "Returns processed by outcome and residency status",
		}, []string{"outcome", "residency"}),

		ComputeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nrtax_batch_compute_duration_seconds",
			Help:    "Duration of aggregating and computing one return",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		Settlement: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nrtax_batch_settlement_dollars_total",
			Help: "Sum of final settlement amounts by direction",
		}, []string{"direction"}),

		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nrtax_batch_workers",
			Help: "Concurrent workers configured for the batch run",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveComputation records one return's outcome and latency.
func (m *Metrics) ObserveComputation(outcome, residency string, d time.Duration) {
	if m != nil {
		m.Returns.WithLabelValues(outcome, residency).Inc()
		m.ComputeLatency.Observe(d.Seconds())
	}
}

// ObserveSettlement adds a final amount to its direction's total.
func (m *Metrics) ObserveSettlement(f domain.FinalComputation) {
	if m != nil {
		amount, _ := f.Amount.Float64()
		m.Settlement.WithLabelValues(string(f.RefundOrOwed)).Add(amount)
	}
}

// SetWorkers records the configured concurrency.
func (m *Metrics) SetWorkers(n int) {
	if m != nil {
		m.Workers.Set(float64(n))
	}
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeComputed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	case errors.Is(err, domain.ErrRulesetNotFound):
		return outcomeNoRuleset
	case errors.Is(err, domain.ErrInvalidInput):
		return outcomeInvalid
	}
	return outcomeFailed
}
