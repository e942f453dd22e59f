// Package runtime hosts algorithm instances: the instance table, lifecycle control,
// market event routing, and discovery.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
)

// Resolver turns a logical algorithm name into a freshly constructed object and
// its canonical type name.
type Resolver interface {
	FindByName(name string) (algo.Algorithm, string, error)
}

// GatewayFactory builds the callback gateway bound to an instance. paused
// reports the instance's current pause state on every call.
type GatewayFactory interface {
	NewGateway(instanceID string, paused func() bool) algo.Gateway
}

// Initialization is the outcome of a successful Initialize.
type Initialization struct {
	InstanceID     string
	Algorithm      string
	Interests      algo.Interests
	HasConfigPanel bool
	ConfigSchema   string
}

// Options configures a Manager.
type Options struct {
	Logger   observability.Logger
	Metrics  *HookMetrics
	Gateways GatewayFactory
}

// Manager is the lifecycle controller. All operations report failures as errs
// envelopes and never panic.
type Manager struct {
	resolver Resolver
	table    *Table
	gateways GatewayFactory
	logger   observability.Logger
	metrics  *HookMetrics

	operations metric.Int64Counter
}

// NewManager creates a lifecycle controller over table.
func NewManager(resolver Resolver, table *Table, opts Options) *Manager {
	if table == nil {
		table = NewTable()
	}
	meter := otel.Meter("runtime.lifecycle")
	operations, _ := meter.Int64Counter(telemetry.MetricLifecycleOps,
		metric.WithDescription("Number of lifecycle operations by outcome"),
		metric.WithUnit("{operation}"))
	return &Manager{
		resolver:   resolver,
		table:      table,
		gateways:   opts.Gateways,
		logger:     observability.OrNop(opts.Logger),
		metrics:    opts.Metrics,
		operations: operations,
	}
}

// Table exposes the instance table shared with the router and discovery.
func (m *Manager) Table() *Table {
	return m.table
}

// Initialize resolves name, constructs the instance, binds its gateway, and
// stores it under id in state Initialized.
func (m *Manager) Initialize(ctx context.Context, id, name string) (result Initialization, err error) {
	defer func() { m.record(ctx, "initialize", err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return Initialization{}, errs.New("initialize", errs.CodeInvalid, errs.WithMessage("instance id required"))
	}
	if _, exists := m.table.Get(id); exists {
		return Initialization{}, m.alreadyInitialized(id, name)
	}
	if m.resolver == nil {
		return Initialization{}, errs.New("initialize", errs.CodeUnavailable, errs.WithInstance(id), errs.WithMessage("no algorithm registry configured"))
	}

	instance, canonical, err := m.resolver.FindByName(name)
	if err != nil {
		m.logger.Info("algorithm resolution failed",
			observability.F("instance_id", id),
			observability.F("algorithm", name),
			observability.Err(err))
		return Initialization{}, err
	}

	logger := m.logger.With(observability.F("instance_id", id), observability.F("algorithm", canonical))
	c := newContext(id, canonical, instance, logger)
	if err := m.bind(c); err != nil {
		algo.Release(instance)
		return Initialization{}, err
	}
	if !m.table.Insert(c) {
		algo.Release(instance)
		return Initialization{}, m.alreadyInitialized(id, name)
	}

	desc := c.Descriptor()
	logger.Info("algorithm initialized",
		observability.F("listen_trades", desc.Interests.Trades),
		observability.F("listen_candles", desc.Interests.Candles),
		observability.F("listen_depth_of_book", desc.Interests.DepthOfBook),
		observability.F("listen_order_status", desc.Interests.OrderStatus))
	return Initialization{
		InstanceID:     id,
		Algorithm:      canonical,
		Interests:      desc.Interests,
		HasConfigPanel: desc.HasConfigPanel(),
		ConfigSchema:   desc.ConfigSchema,
	}, nil
}

func (m *Manager) bind(c *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.New("initialize", errs.CodeHookFailed, errs.WithInstance(c.id), errs.WithAlgorithm(c.name),
				errs.WithMessage(fmt.Sprintf("binding panicked: %v", rec)))
		}
	}()
	if binder, ok := c.algorithm.(algo.LoggerBinder); ok {
		binder.BindLogger(c.logger)
	}
	if m.gateways == nil {
		return nil
	}
	c.gateway = m.gateways.NewGateway(c.id, func() bool { return c.State() == algo.StatePaused })
	if binder, ok := c.algorithm.(algo.GatewayBinder); ok {
		binder.BindGateway(c.gateway)
	}
	return nil
}

func (m *Manager) alreadyInitialized(id, name string) error {
	return errs.New("initialize", errs.CodeAlreadyInitialized, errs.WithInstance(id), errs.WithAlgorithm(name),
		errs.WithMessage("algorithm already initialized"))
}

// Start applies configJSON and runs the start hook. A malformed payload is logged
// and replaced by an empty configuration. A refusal or hook failure leaves the
// state unchanged.
func (m *Manager) Start(ctx context.Context, id, configJSON string) (err error) {
	defer func() { m.record(ctx, "start", err) }()

	c, err := m.lock("start", id)
	if err != nil {
		return err
	}
	defer c.lifecycle.Unlock()

	cfg, parseErr := algo.ParseConfig(configJSON)
	if parseErr != nil {
		c.logger.Warn("invalid configuration payload, starting with empty configuration",
			observability.F("payload", configJSON),
			observability.Err(errs.New("start", errs.CodeInvalidConfig, errs.WithInstance(c.id), errs.WithCause(parseErr))))
		cfg = algo.Config{}
	}

	var started bool
	if err := invoke(c, hookStart, m.metrics, c.logger, func() error {
		var hookErr error
		started, hookErr = c.algorithm.Start(ctx, cfg.Clone())
		return hookErr
	}); err != nil {
		c.logger.Error("algorithm start failed", observability.Err(err))
		return err
	}
	if !started {
		return errs.New("start", errs.CodeHookFailed, errs.WithInstance(c.id), errs.WithAlgorithm(c.name),
			errs.WithMessage("algorithm start function returned failure"))
	}
	c.applyConfig(cfg)
	c.setState(algo.StateRunning)
	c.logger.Info("algorithm started")
	return nil
}

// Pause runs the pause hook when declared and moves the instance to Paused.
func (m *Manager) Pause(ctx context.Context, id string) error {
	return m.transition(ctx, "pause", id, hookPause, algo.StatePaused, func(h algo.Hooks) func(context.Context) error { return h.Pause })
}

// Resume runs the resume hook when declared and moves the instance to Running.
func (m *Manager) Resume(ctx context.Context, id string) error {
	return m.transition(ctx, "resume", id, hookResume, algo.StateRunning, func(h algo.Hooks) func(context.Context) error { return h.Resume })
}

func (m *Manager) transition(ctx context.Context, op, id, hook string, next algo.LifecycleState, pick func(algo.Hooks) func(context.Context) error) (err error) {
	defer func() { m.record(ctx, op, err) }()

	c, err := m.lock(op, id)
	if err != nil {
		return err
	}
	defer c.lifecycle.Unlock()

	if fn := pick(c.hooks); fn != nil {
		if err := invoke(c, hook, m.metrics, c.logger, func() error { return fn(ctx) }); err != nil {
			c.logger.Error("algorithm "+op+" failed", observability.Err(err))
			return err
		}
	}
	c.setState(next)
	c.logger.Info("algorithm state changed", observability.F("state", next.String()))
	return nil
}

// Stop retires the instance, removes it from the table, and runs the stop hook.
// The instance is removed even when the hook fails; the failure is still reported.
func (m *Manager) Stop(ctx context.Context, id string) (err error) {
	defer func() { m.record(ctx, "stop", err) }()

	c, err := m.lock("stop", id)
	if err != nil {
		return err
	}
	defer c.lifecycle.Unlock()

	if !c.retire() {
		return errs.NotInitialized("stop", id)
	}
	m.table.Remove(c)
	c.setState(algo.StateStopped)

	var hookErr error
	if c.hooks.Stop != nil {
		hookErr = invoke(c, hookStop, m.metrics, c.logger, func() error { return c.hooks.Stop(ctx) })
	}
	algo.Release(c.algorithm)
	m.metrics.Forget(c.id)

	if hookErr != nil {
		c.logger.Error("algorithm stop hook failed, instance removed", observability.Err(hookErr))
		return hookErr
	}
	c.logger.Info("algorithm stopped")
	return nil
}

// StopAll stops every live instance. Used during shutdown.
func (m *Manager) StopAll(ctx context.Context) error {
	var failures []error
	for _, c := range m.table.Contexts() {
		if err := m.Stop(ctx, c.id); err != nil && !errs.Is(err, errs.CodeNotInitialized) {
			failures = append(failures, err)
		}
	}
	return observability.AggregateErrors(m.logger, "stop all instances", failures)
}

// lock fetches the live context for id and holds its lifecycle lock.
func (m *Manager) lock(op, id string) (*Context, error) {
	id = strings.TrimSpace(id)
	c, ok := m.table.Get(id)
	if !ok {
		return nil, errs.NotInitialized(op, id)
	}
	c.lifecycle.Lock()
	if c.Retired() {
		c.lifecycle.Unlock()
		return nil, errs.NotInitialized(op, id)
	}
	return c, nil
}

func (m *Manager) record(ctx context.Context, op string, err error) {
	if m.operations == nil {
		return
	}
	result := telemetry.ResultSuccess
	if err != nil {
		result = string(errs.CodeOf(err))
		if result == "" {
			result = telemetry.ResultError
		}
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(telemetry.OperationAttributes(op, result)...))
}
