// Package risk guards outbound orders with per-instance limits.
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
)

// Limits defines the order guard applied to a single instance. Zero values
// disable the corresponding check.
type Limits struct {
	// MaxOrderQuantity is the largest quantity a single order may carry.
	MaxOrderQuantity decimal.Decimal `yaml:"maxOrderQuantity"`

	// MaxOrderNotional caps price*quantity of a single limit order.
	MaxOrderNotional decimal.Decimal `yaml:"maxOrderNotional"`

	// OrderThrottle is the sustained number of orders per second.
	OrderThrottle float64 `yaml:"orderThrottle"`

	// OrderBurst is the number of orders allowed back to back.
	OrderBurst int `yaml:"orderBurst"`
}

// Manager enforces Limits for one instance.
type Manager struct {
	limits  Limits
	limiter *rate.Limiter
}

// NewManager creates a guard with the given limits.
func NewManager(limits Limits) *Manager {
	m := &Manager{limits: limits}
	if limits.OrderThrottle > 0 {
		burst := limits.OrderBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(limits.OrderThrottle), burst)
	}
	return m
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CheckOrder evaluates req against the limits. It never blocks: an order over
// the throttle is refused with errs.CodeRateLimited rather than delayed.
func (m *Manager) CheckOrder(_ context.Context, instanceID string, req algo.OrderRequest) error {
	if !req.Quantity.IsPositive() {
		return errs.New("send_order", errs.CodeInvalid, errs.WithInstance(instanceID),
			errs.WithMessage(fmt.Sprintf("order quantity %s must be positive", req.Quantity)))
	}
	if req.Type == algo.OrderTypeLimit && !req.Price.IsPositive() {
		return errs.New("send_order", errs.CodeInvalid, errs.WithInstance(instanceID),
			errs.WithMessage(fmt.Sprintf("limit price %s must be positive", req.Price)))
	}
	if limit := m.limits.MaxOrderQuantity; limit.IsPositive() && req.Quantity.GreaterThan(limit) {
		return errs.New("send_order", errs.CodeInvalid, errs.WithInstance(instanceID),
			errs.WithMessage(fmt.Sprintf("order quantity %s exceeds max order quantity %s", req.Quantity, limit)))
	}
	if limit := m.limits.MaxOrderNotional; limit.IsPositive() && req.Type == algo.OrderTypeLimit {
		if notional := req.Price.Mul(req.Quantity); notional.GreaterThan(limit) {
			return errs.New("send_order", errs.CodeInvalid, errs.WithInstance(instanceID),
				errs.WithMessage(fmt.Sprintf("order notional %s exceeds max order notional %s", notional, limit)))
		}
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return errs.New("send_order", errs.CodeRateLimited, errs.WithInstance(instanceID),
			errs.WithMessage("order throttle limit exceeded"))
	}
	return nil
}
