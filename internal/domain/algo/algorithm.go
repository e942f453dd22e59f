// Package algo defines the contract between the host runtime and hosted trading algorithms.
//
// An algorithm must implement Algorithm. Every other capability is optional and is
// discovered once, when the instance is initialised, either through the narrow hook
// interfaces below or through an explicit HookProvider. A capability the algorithm
// does not declare is never invoked and the matching event kind is never routed to it.
package algo

import (
	"context"

	"github.com/coachpo/algohost/internal/observability"
)

// Info carries the self-description reported by an algorithm.
type Info struct {
	DisplayName  string
	Description  string
	Version      string
	Author       string
	Tags         []string
	ConfigSchema string
}

// Config is the JSON object applied on Start.
type Config map[string]any

// Algorithm is the minimum contract every hosted algorithm satisfies.
type Algorithm interface {
	Info() Info
	// Start applies cfg and begins trading. Returning false without an error
	// reports a refusal to start.
	Start(ctx context.Context, cfg Config) (bool, error)
}

// Pauser is implemented by algorithms that react to Pause.
type Pauser interface {
	Pause(ctx context.Context) error
}

// Resumer is implemented by algorithms that react to Resume.
type Resumer interface {
	Resume(ctx context.Context) error
}

// Stopper is implemented by algorithms that release resources on Stop.
type Stopper interface {
	Stop(ctx context.Context) error
}

// TradeProcessor consumes trade batches.
type TradeProcessor interface {
	ProcessTrade(ctx context.Context, trades []Trade) error
}

// CandleProcessor consumes candle batches.
type CandleProcessor interface {
	ProcessCandle(ctx context.Context, candles []Candle) error
}

// DepthOfBookProcessor consumes order book snapshots.
type DepthOfBookProcessor interface {
	ProcessDepthOfBook(ctx context.Context, book DepthOfBook) error
}

// OrderStatusProcessor consumes order status updates addressed to the instance.
type OrderStatusProcessor interface {
	ProcessOrderStatus(ctx context.Context, status OrderStatus) error
}

// HookProvider lets an algorithm declare its capabilities explicitly instead of
// through the hook interfaces. Script-backed algorithms use this.
type HookProvider interface {
	Hooks() Hooks
}

// GatewayBinder receives the per-instance callback gateway after initialisation.
type GatewayBinder interface {
	BindGateway(gw Gateway)
}

// LoggerBinder receives a logger scoped to the instance.
type LoggerBinder interface {
	BindLogger(logger observability.Logger)
}

// ConfigReporter exposes the configuration the algorithm currently runs with.
// When present it takes precedence over the last applied Start payload.
type ConfigReporter interface {
	Configuration() Config
}

// Closer is implemented by algorithms that hold resources, such as a script VM,
// which must be released once the object is discarded.
type Closer interface {
	Close()
}

// Release frees a's resources when it implements Closer.
func Release(a Algorithm) {
	if c, ok := a.(Closer); ok {
		c.Close()
	}
}
