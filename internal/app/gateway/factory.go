package gateway

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
	"github.com/coachpo/algohost/internal/risk"
)

// Options configures gateways produced by a Factory.
type Options struct {
	// Platform receives outbound calls. Nil selects Offline.
	Platform Platform
	// Recorder journals every outbound call. Nil disables journaling.
	Recorder journal.Recorder
	// Limits applies a fresh risk guard to each instance.
	Limits risk.Limits
	// Simulated is the default for orders that do not set it explicitly.
	Simulated bool
	Logger    observability.Logger
}

// Factory builds one Gateway per instance.
type Factory struct {
	opts    Options
	metrics callMetrics
	now     func() time.Time
}

type callMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewFactory constructs a Factory.
func NewFactory(opts Options) *Factory {
	opts.Logger = observability.OrNop(opts.Logger)
	if opts.Platform == nil {
		opts.Platform = Offline{}
	}
	meter := otel.Meter("algohost.gateway")
	calls, _ := meter.Int64Counter(telemetry.MetricGatewayCalls,
		metric.WithDescription("Outbound platform calls made on behalf of instances"),
		metric.WithUnit("{call}"))
	duration, _ := meter.Float64Histogram(telemetry.MetricGatewayDuration,
		metric.WithDescription("Latency of outbound platform calls"),
		metric.WithUnit("ms"))
	return &Factory{
		opts:    opts,
		metrics: callMetrics{calls: calls, duration: duration},
		now:     time.Now,
	}
}

// NewGateway implements runtime.GatewayFactory.
func (f *Factory) NewGateway(instanceID string, paused func() bool) algo.Gateway {
	return f.New(instanceID, paused)
}

// New returns the concrete gateway bound to instanceID.
func (f *Factory) New(instanceID string, paused func() bool) *Gateway {
	return &Gateway{
		instanceID: instanceID,
		platform:   f.opts.Platform,
		guard:      risk.NewManager(f.opts.Limits),
		recorder:   f.opts.Recorder,
		simulated:  f.opts.Simulated,
		paused:     paused,
		logger:     f.opts.Logger.With(observability.F("instance", instanceID)),
		metrics:    f.metrics,
		now:        f.now,
	}
}
