package algo

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/coachpo/algohost/internal/observability"
)

// Base is embeddable scaffolding for Go algorithms. It stores the bound gateway
// and logger and tracks the paused flag. It deliberately implements no market
// hooks, so embedding it never adds event interest.
type Base struct {
	mu      sync.RWMutex
	gateway Gateway
	logger  observability.Logger
	paused  atomic.Bool
}

// BindGateway stores the instance gateway.
func (b *Base) BindGateway(gw Gateway) {
	b.mu.Lock()
	b.gateway = gw
	b.mu.Unlock()
}

// Gateway returns the bound gateway, or nil before initialisation.
func (b *Base) Gateway() Gateway {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gateway
}

// BindLogger stores the instance logger.
func (b *Base) BindLogger(logger observability.Logger) {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Logger returns the bound logger, never nil.
func (b *Base) Logger() observability.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return observability.OrNop(b.logger)
}

// Pause marks the algorithm as paused.
func (b *Base) Pause(context.Context) error {
	b.paused.Store(true)
	return nil
}

// Resume clears the paused flag.
func (b *Base) Resume(context.Context) error {
	b.paused.Store(false)
	return nil
}

// Paused reports whether Pause was the last lifecycle hook applied.
func (b *Base) Paused() bool {
	return b.paused.Load()
}
