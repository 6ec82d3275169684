// Package metrics defines the Prometheus collectors of the lifting pipeline.
// All Record methods are safe on a nil *Metrics, so components take an
// optional collector set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "semlift"

// Metrics contains the pipeline collectors.
type Metrics struct {
	CacheLookups *prometheus.CounterVec
	HTTPFetches  *prometheus.CounterVec
	LiftRuns     *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	APIPages     *prometheus.CounterVec
	PlanImports  *prometheus.CounterVec
	ProcessExits *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by outcome (hit, miss, revalidated, stale)",
			},
			[]string{"outcome"},
		),

		HTTPFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "fetches_total",
				Help:      "HTTP fetches by component and status class",
			},
			[]string{"component", "status"},
		),

		LiftRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lift",
				Name:      "runs_total",
				Help:      "Lift runs by outcome (ok, nonconforming, failed)",
			},
			[]string{"outcome"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lift",
				Name:      "step_duration_seconds",
				Help:      "Pipeline step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		APIPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "pages_total",
				Help:      "API pages fetched by protocol",
			},
			[]string{"protocol"},
		),

		PlanImports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "imports_total",
				Help:      "Plan imports resolved by kind (ref, provider)",
			},
			[]string{"kind"},
		),

		ProcessExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "exits_total",
				Help:      "External process runs by program and exit class",
			},
			[]string{"program", "result"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.CacheLookups, m.HTTPFetches, m.LiftRuns, m.StepDuration,
		m.APIPages, m.PlanImports, m.ProcessExits,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordCacheLookup counts a cache lookup outcome.
func (m *Metrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// RecordHTTPFetch counts an HTTP response by status class ("2xx", "304",
// "error" for transport failures).
func (m *Metrics) RecordHTTPFetch(component string, status int) {
	if m == nil {
		return
	}
	m.HTTPFetches.WithLabelValues(component, statusClass(status)).Inc()
}

// RecordLift counts a finished lift.
func (m *Metrics) RecordLift(outcome string) {
	if m == nil {
		return
	}
	m.LiftRuns.WithLabelValues(outcome).Inc()
}

// RecordStep observes a step duration.
func (m *Metrics) RecordStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordAPIPage counts a fetched page.
func (m *Metrics) RecordAPIPage(protocol string) {
	if m == nil {
		return
	}
	m.APIPages.WithLabelValues(protocol).Inc()
}

// RecordPlanImport counts a resolved import.
func (m *Metrics) RecordPlanImport(kind string) {
	if m == nil {
		return
	}
	m.PlanImports.WithLabelValues(kind).Inc()
}

// RecordProcessExit counts an external process run.
func (m *Metrics) RecordProcessExit(program string, exitCode int) {
	if m == nil {
		return
	}
	result := "ok"
	if exitCode != 0 {
		result = "nonzero"
	}
	m.ProcessExits.WithLabelValues(program, result).Inc()
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status == 304:
		return "304"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
