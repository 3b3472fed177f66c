// Package metrics turns engine events into Prometheus metrics, written as a
// node exporter textfile.
package metrics

import (
	"fmt"

	"github.com/gammadia/freetier/acquirer"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "freetier"

type Metrics struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	switches        prometheus.Counter
	cycles          prometheus.Counter
	backoff         prometheus.Counter
	lastAttempt     prometheus.Gauge
	outcome         *prometheus.GaugeVec
	runDuration     prometheus.Gauge
	candidates      prometheus.Gauge
	inventoryChecks *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of instance creation attempts",
		}, []string{"location"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_failures_total",
			Help:      "Total number of failed creation attempts",
		}, []string{"location", "classification"}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_switches_total",
			Help:      "Total number of switches to another location",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_cycles_total",
			Help:      "Total number of full cycles over the candidate locations",
		}),
		backoff: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backoff_seconds_total",
			Help:      "Total time spent waiting between attempts",
		}),
		lastAttempt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_attempt_timestamp_seconds",
			Help:      "Unix time of the last creation attempt",
		}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outcome",
			Help:      "Set to 1 for the outcome of the run",
		}, []string{"outcome"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the run",
		}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_locations",
			Help:      "Number of locations the run rotates over",
		}),
		inventoryChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_checks_total",
			Help:      "Total number of inventory checks",
		}, []string{"reason", "found"}),
	}

	m.registry.MustRegister(
		m.attempts, m.failures, m.switches, m.cycles, m.backoff,
		m.lastAttempt, m.outcome, m.runDuration, m.candidates, m.inventoryChecks,
	)
	return m
}

// Observe updates the metrics from an engine event. It is meant to be
// subscribed to the engine.
func (m *Metrics) Observe(event acquirer.Event) {
	switch e := event.(type) {
	case acquirer.EventLocationsDiscovered:
		m.candidates.Set(float64(len(e.Candidates)))
	case acquirer.EventAttempt:
		m.attempts.WithLabelValues(e.Location).Inc()
		m.lastAttempt.SetToCurrentTime()
	case acquirer.EventAttemptFailed:
		m.failures.WithLabelValues(e.Location, e.Classification.String()).Inc()
	case acquirer.EventLocationSwitched:
		m.switches.Inc()
	case acquirer.EventCycleCompleted:
		m.cycles.Inc()
	case acquirer.EventBackoff:
		m.backoff.Add(e.Wait.Seconds())
	case acquirer.EventInventoryChecked:
		m.inventoryChecks.WithLabelValues(e.Reason, fmt.Sprint(e.Record != nil)).Inc()
	case acquirer.EventOutcome:
		m.outcome.Reset()
		m.outcome.WithLabelValues(e.Outcome.Kind.String()).Set(1)
		m.runDuration.Set(e.Elapsed.Seconds())
	}
}

// WriteTextfile writes every metric to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
