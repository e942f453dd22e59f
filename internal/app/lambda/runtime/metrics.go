package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HookMetrics captures per-instance hook invocation, failure, panic, and duration telemetry.
type HookMetrics struct {
	invocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	panics      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewHookMetrics constructs metrics instruments registered against the supplied registerer.
func NewHookMetrics(reg prometheus.Registerer) *HookMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"instance", "hook"}
	m := &HookMetrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "algohost",
				Subsystem: "hook",
				Name:      "invocations_total",
				Help:      "Total number of algorithm hook invocations.",
			},
			labels,
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "algohost",
				Subsystem: "hook",
				Name:      "failures_total",
				Help:      "Total number of algorithm hooks that returned an error.",
			},
			labels,
		),
		panics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "algohost",
				Subsystem: "hook",
				Name:      "panics_total",
				Help:      "Total number of algorithm hook panics recovered.",
			},
			labels,
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "algohost",
				Subsystem: "hook",
				Name:      "duration_seconds",
				Help:      "Histogram of algorithm hook durations.",
				Buckets:   prometheus.DefBuckets,
			},
			labels,
		),
	}
	reg.MustRegister(m.invocations, m.failures, m.panics, m.duration)
	return m
}

// ObserveInvocation increments the invocation counter.
func (m *HookMetrics) ObserveInvocation(instanceID, hook string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(instanceID, hook).Inc()
}

// ObserveFailure increments the failure counter.
func (m *HookMetrics) ObserveFailure(instanceID, hook string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(instanceID, hook).Inc()
}

// ObservePanic increments the panic counter.
func (m *HookMetrics) ObservePanic(instanceID, hook string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(instanceID, hook).Inc()
}

// ObserveDuration records the hook duration.
func (m *HookMetrics) ObserveDuration(instanceID, hook string, d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.duration.WithLabelValues(instanceID, hook).Observe(d.Seconds())
}

// Forget drops every series of a removed instance.
func (m *HookMetrics) Forget(instanceID string) {
	if m == nil {
		return
	}
	match := prometheus.Labels{"instance": instanceID}
	m.invocations.DeletePartialMatch(match)
	m.failures.DeletePartialMatch(match)
	m.panics.DeletePartialMatch(match)
	m.duration.DeletePartialMatch(match)
}

// InvocationsCounter exposes the invocation counter for testing and diagnostics.
func (m *HookMetrics) InvocationsCounter(instanceID, hook string) prometheus.Counter {
	return m.invocations.WithLabelValues(instanceID, hook)
}

// FailuresCounter exposes the failure counter for testing and diagnostics.
func (m *HookMetrics) FailuresCounter(instanceID, hook string) prometheus.Counter {
	return m.failures.WithLabelValues(instanceID, hook)
}

// PanicsCounter exposes the panic counter for testing and diagnostics.
func (m *HookMetrics) PanicsCounter(instanceID, hook string) prometheus.Counter {
	return m.panics.WithLabelValues(instanceID, hook)
}
