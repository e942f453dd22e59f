package strategies

import (
	"context"

	"go.uber.org/atomic"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// Example implements every hook and only logs what it receives.
type Example struct {
	algo.Base

	trades       atomic.Int64
	candles      atomic.Int64
	books        atomic.Int64
	orderUpdates atomic.Int64
}

// NewExample constructs the example algorithm.
func NewExample() *Example {
	return &Example{}
}

// Info implements algo.Algorithm.
func (e *Example) Info() algo.Info {
	return algo.Info{
		DisplayName: "Example Algorithm",
		Description: "Reference algorithm that logs every hook it receives.",
		Version:     "1.0.0",
		Author:      "algohost",
		Tags:        []string{"example", "reference"},
		ConfigSchema: algo.BuildSchema("Example Algorithm", "Reference algorithm configuration.", []algo.ConfigField{
			{Name: "symbol", Title: "Symbol", Type: "string", Default: "BTC-USD"},
			{Name: "exchange", Title: "Exchange", Type: "string", Default: string(algo.ExchangeCoinbase)},
		}),
	}
}

// Start implements algo.Algorithm.
func (e *Example) Start(_ context.Context, cfg algo.Config) (bool, error) {
	e.Logger().Info("example algorithm started",
		observability.F("symbol", cfg.String("symbol", "")),
		observability.F("exchange", cfg.String("exchange", "")))
	return true, nil
}

// Stop implements algo.Stopper.
func (e *Example) Stop(context.Context) error {
	e.Logger().Info("example algorithm stopped",
		observability.F("trades", e.trades.Load()),
		observability.F("candles", e.candles.Load()),
		observability.F("books", e.books.Load()),
		observability.F("order_updates", e.orderUpdates.Load()))
	return nil
}

// ProcessTrade implements algo.TradeProcessor.
func (e *Example) ProcessTrade(_ context.Context, trades []algo.Trade) error {
	for _, t := range trades {
		e.Logger().Debug("trade",
			observability.F("symbol", t.Symbol),
			observability.F("price", t.Price.String()),
			observability.F("quantity", t.Quantity.String()))
	}
	e.trades.Add(int64(len(trades)))
	return nil
}

// ProcessCandle implements algo.CandleProcessor.
func (e *Example) ProcessCandle(_ context.Context, candles []algo.Candle) error {
	for _, c := range candles {
		e.Logger().Debug("candle",
			observability.F("symbol", c.Symbol),
			observability.F("open", c.Open.String()),
			observability.F("high", c.High.String()),
			observability.F("low", c.Low.String()),
			observability.F("close", c.Close.String()))
	}
	e.candles.Add(int64(len(candles)))
	return nil
}

// ProcessDepthOfBook implements algo.DepthOfBookProcessor.
func (e *Example) ProcessDepthOfBook(_ context.Context, book algo.DepthOfBook) error {
	e.Logger().Debug("depth of book",
		observability.F("symbol", book.Symbol),
		observability.F("bids", len(book.Bids)),
		observability.F("offers", len(book.Offers)))
	e.books.Inc()
	return nil
}

// ProcessOrderStatus implements algo.OrderStatusProcessor.
func (e *Example) ProcessOrderStatus(_ context.Context, status algo.OrderStatus) error {
	e.Logger().Info("order status",
		observability.F("order_id", status.OrderID),
		observability.F("state", string(status.State)))
	e.orderUpdates.Inc()
	return nil
}

// Counts reports how many events of each kind were processed.
func (e *Example) Counts() (trades, candles, books, orderUpdates int64) {
	return e.trades.Load(), e.candles.Load(), e.books.Load(), e.orderUpdates.Load()
}
