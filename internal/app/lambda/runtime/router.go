package runtime

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
)

// DefaultFanoutWorkers bounds concurrent deliveries of one broadcast.
const DefaultFanoutWorkers = 16

// EventAck acknowledges a broadcast event by id.
type EventAck struct {
	ID string
}

// OrderStatusAck acknowledges an order status update.
type OrderStatusAck struct {
	InstanceID string
	MessageID  int64
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Logger        observability.Logger
	Metrics       *HookMetrics
	FanoutWorkers int
}

// Router delivers market events to interested instances. A failing instance
// never affects delivery to the others, the table, or the acknowledgement.
type Router struct {
	table   *Table
	logger  observability.Logger
	metrics *HookMetrics
	workers int

	dispatched metric.Int64Counter
	failed     metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewRouter constructs a router over table.
func NewRouter(table *Table, opts RouterOptions) *Router {
	workers := opts.FanoutWorkers
	if workers <= 0 {
		workers = DefaultFanoutWorkers
	}
	meter := otel.Meter("runtime.router")
	dispatched, _ := meter.Int64Counter(telemetry.MetricEventsDispatched,
		metric.WithDescription("Number of event deliveries to algorithm instances"),
		metric.WithUnit("{delivery}"))
	failed, _ := meter.Int64Counter(telemetry.MetricEventsFailed,
		metric.WithDescription("Number of event deliveries whose hook failed"),
		metric.WithUnit("{delivery}"))
	duration, _ := meter.Float64Histogram(telemetry.MetricDispatchDuration,
		metric.WithDescription("Time to deliver one event to every interested instance"),
		metric.WithUnit("ms"))
	return &Router{
		table:      table,
		logger:     observability.OrNop(opts.Logger),
		metrics:    opts.Metrics,
		workers:    workers,
		dispatched: dispatched,
		failed:     failed,
		duration:   duration,
	}
}

// DispatchTrade broadcasts a trade to every instance with a trade hook.
func (r *Router) DispatchTrade(ctx context.Context, trade algo.Trade) EventAck {
	r.broadcast(ctx, algo.EventTrade, hookTrade, func(c *Context) error {
		return c.hooks.Trade(ctx, []algo.Trade{trade})
	})
	return EventAck{ID: trade.ID}
}

// DispatchCandle broadcasts a candle to every instance with a candle hook.
func (r *Router) DispatchCandle(ctx context.Context, candle algo.Candle) EventAck {
	r.broadcast(ctx, algo.EventCandle, hookCandle, func(c *Context) error {
		return c.hooks.Candle(ctx, []algo.Candle{candle})
	})
	return EventAck{ID: candle.ID}
}

// DispatchDepthOfBook broadcasts a book snapshot to every instance with a depth-of-book hook.
func (r *Router) DispatchDepthOfBook(ctx context.Context, book algo.DepthOfBook) EventAck {
	r.broadcast(ctx, algo.EventDepthOfBook, hookDepthOfBook, func(c *Context) error {
		return c.hooks.DepthOfBook(ctx, book)
	})
	return EventAck{ID: book.ID}
}

// DispatchOrderStatus delivers an order update to the addressed instance only.
// Unknown ids and instances without an order-status hook are acknowledged silently.
func (r *Router) DispatchOrderStatus(ctx context.Context, status algo.OrderStatus) OrderStatusAck {
	ack := OrderStatusAck{InstanceID: status.InstanceID, MessageID: status.MessageID}
	c, ok := r.table.Get(status.InstanceID)
	if !ok {
		r.logger.Debug("order status for unknown instance",
			observability.F("instance_id", status.InstanceID),
			observability.F("message_id", status.MessageID))
		return ack
	}
	if !c.Interests().OrderStatus {
		return ack
	}
	r.deliverTo(ctx, c, algo.EventOrderStatus, hookOrderStatus, func(c *Context) error {
		return c.hooks.OrderStatus(ctx, status)
	})
	return ack
}

func (r *Router) broadcast(ctx context.Context, kind algo.EventKind, hook string, call func(*Context) error) {
	start := time.Now()
	p := pool.New().WithMaxGoroutines(r.workers)
	for _, c := range r.table.Contexts() {
		if !c.Interests().Has(kind) {
			continue
		}
		p.Go(func() {
			r.deliverTo(ctx, c, kind, hook, call)
		})
	}
	p.Wait()
	if r.duration != nil {
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		r.duration.Record(ctx, elapsed, metric.WithAttributes(telemetry.EventAttributes(string(kind))...))
	}
}

func (r *Router) deliverTo(ctx context.Context, c *Context, kind algo.EventKind, hook string, call func(*Context) error) {
	delivered, err := c.deliver(kind, func() error {
		return invoke(c, hook, r.metrics, c.logger, func() error { return call(c) })
	})
	if !delivered {
		return
	}
	attrs := metric.WithAttributes(telemetry.EventAttributes(string(kind))...)
	if r.dispatched != nil {
		r.dispatched.Add(ctx, 1, attrs)
	}
	if err != nil {
		if r.failed != nil {
			r.failed.Add(ctx, 1, attrs)
		}
		c.logger.Error("algorithm event processing failed",
			observability.F("kind", string(kind)),
			observability.Err(err))
	}
}
