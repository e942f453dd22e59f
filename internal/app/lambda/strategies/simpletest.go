package strategies

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// SimpleTest tracks the last seen price and echoes its configuration.
type SimpleTest struct {
	algo.Base

	mu        sync.Mutex
	cfg       algo.Config
	lastPrice decimal.Decimal
}

// NewSimpleTest constructs the simple test algorithm.
func NewSimpleTest() *SimpleTest {
	return &SimpleTest{}
}

// Info implements algo.Algorithm.
func (s *SimpleTest) Info() algo.Info {
	return algo.Info{
		DisplayName: "Simple Test Algorithm",
		Description: "A basic test algorithm for validation",
		Version:     "1.0.0",
		Author:      "algohost",
		Tags:        []string{"test"},
		ConfigSchema: algo.BuildSchema("Simple Test Algorithm", "A basic test algorithm for validation", []algo.ConfigField{
			{Name: "test_parameter", Title: "Test Parameter", Type: "number", Description: "A test parameter", Default: 100.0},
			{Name: "symbol", Title: "Trading Symbol", Type: "string", Description: "Symbol to trade", Default: "BTCUSD"},
		}),
	}
}

// Start implements algo.Algorithm.
func (s *SimpleTest) Start(_ context.Context, cfg algo.Config) (bool, error) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()
	if symbol := cfg.String("symbol", ""); symbol != "" {
		s.Logger().Info("simple test algorithm would subscribe", observability.F("symbol", symbol))
	}
	return true, nil
}

// Stop implements algo.Stopper.
func (s *SimpleTest) Stop(context.Context) error {
	s.Logger().Info("simple test algorithm stopped")
	return nil
}

// ProcessTrade implements algo.TradeProcessor.
func (s *SimpleTest) ProcessTrade(_ context.Context, trades []algo.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	s.mu.Lock()
	s.lastPrice = trades[len(trades)-1].Price
	s.mu.Unlock()
	return nil
}

// ProcessCandle implements algo.CandleProcessor.
func (s *SimpleTest) ProcessCandle(_ context.Context, candles []algo.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	s.mu.Lock()
	s.lastPrice = candles[len(candles)-1].Close
	s.mu.Unlock()
	return nil
}

// ProcessDepthOfBook implements algo.DepthOfBookProcessor.
func (s *SimpleTest) ProcessDepthOfBook(_ context.Context, book algo.DepthOfBook) error {
	s.Logger().Debug("depth of book",
		observability.F("symbol", book.Symbol),
		observability.F("bids", len(book.Bids)),
		observability.F("offers", len(book.Offers)))
	return nil
}

// ProcessOrderStatus implements algo.OrderStatusProcessor.
func (s *SimpleTest) ProcessOrderStatus(_ context.Context, status algo.OrderStatus) error {
	s.Logger().Info("order status update",
		observability.F("order_id", status.OrderID),
		observability.F("state", string(status.State)))
	return nil
}

// LastPrice returns the most recent trade price or candle close.
func (s *SimpleTest) LastPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice
}

// Configuration implements algo.ConfigReporter.
func (s *SimpleTest) Configuration() algo.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cfg.Clone()
	out["last_price"] = s.lastPrice.String()
	return out
}
