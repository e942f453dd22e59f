package strategies

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

const scalpbotPricePlaces = 8

var scalpbotFields = []algo.ConfigField{
	{Name: "symbol", Title: "Symbol", Type: "string", Description: "Symbol to trade.", Options: "Any valid trading symbol.", Default: "BTC-USDT"},
	{Name: "exchange", Title: "Exchange", Type: "string", Description: "Comma-separated exchanges to subscribe on. Orders go to the first.", Options: "Any valid exchange.", Default: "BinanceUS"},
	{Name: "offer_threshold", Title: "Offer Threshold", Type: "number", Description: "Distance below the best offer, in quote currency, of the highest grid level.", Options: "0.0 .. 1000", Default: 50.0},
	{Name: "upper_delta", Title: "Upper Delta", Type: "number", Description: "Fraction above the best bid the grid may reach before the offer threshold applies.", Options: "0.0 .. 1.0", Default: 0.0},
	{Name: "lower_delta", Title: "Lower Delta", Type: "number", Description: "Depth of the grid below its highest level, as a fraction.", Options: "0.0 .. 1.0", Default: 0.001},
	{Name: "grid_count", Title: "Grid Levels", Type: "integer", Description: "Number of grid levels.", Options: "2 .. 100", Default: 10},
	{Name: "order_ttk", Title: "Order TTK", Type: "integer", Description: "Seconds an unfilled buy stays in the book before it is cancelled.", Options: "1 .. 1000", Default: 10},
	{Name: "order_quantity", Title: "Order Quantity", Type: "number", Description: "Quantity of each order.", Options: "0 .. Account Balance", Default: 0.0001},
}

type gridOrder struct {
	side     algo.Side
	price    decimal.Decimal
	exchange algo.Exchange
	placedAt time.Time
}

// Scalpbot lays a grid of limit buys below the best offer once live book data
// arrives. A filled buy is followed by a sell at the next level up, and a filled
// sell by a buy at the next level down. Unfilled buys are cancelled after
// order_ttk, and the grid is rebuilt once no orders remain.
type Scalpbot struct {
	algo.Base

	mu             sync.Mutex
	symbol         string
	exchanges      []algo.Exchange
	quantity       decimal.Decimal
	offerThreshold decimal.Decimal
	upperDelta     decimal.Decimal
	lowerDelta     decimal.Decimal
	gridCount      int
	orderTTK       time.Duration
	levels         []decimal.Decimal
	orders         map[string]gridOrder

	now func() time.Time
}

// NewScalpbot constructs the scalping grid algorithm.
func NewScalpbot() *Scalpbot {
	return &Scalpbot{orders: make(map[string]gridOrder), now: time.Now}
}

// Info implements algo.Algorithm.
func (s *Scalpbot) Info() algo.Info {
	return algo.Info{
		DisplayName:  "Scalpbot Algorithm",
		Description:  "A scalping algorithm that places buy orders near bid levels and attempts to close near the offer.",
		Version:      "2.0.1",
		Author:       "algohost",
		Tags:         []string{"grid", "trading", "automated", "volatility", "market-making"},
		ConfigSchema: algo.BuildSchema("Scalpbot", "Simple grid trading bot.", scalpbotFields),
	}
}

// Start reads the configuration and subscribes the symbol on every exchange
// concurrently. Any failed subscription refuses the start.
func (s *Scalpbot) Start(ctx context.Context, cfg algo.Config) (bool, error) {
	gw := s.Gateway()
	if gw == nil {
		return false, fmt.Errorf("scalpbot: gateway not bound")
	}

	s.mu.Lock()
	s.symbol = cfg.String("symbol", "BTC-USDT")
	s.exchanges = parseExchanges(cfg.String("exchange", "BinanceUS"))
	s.quantity = decimal.NewFromFloat(cfg.Float("order_quantity", 0.0001))
	s.offerThreshold = decimal.NewFromFloat(cfg.Float("offer_threshold", 50))
	s.upperDelta = decimal.NewFromFloat(cfg.Float("upper_delta", 0))
	s.lowerDelta = decimal.NewFromFloat(cfg.Float("lower_delta", 0.001))
	s.gridCount = cfg.Int("grid_count", 10)
	s.orderTTK = cfg.Duration("order_ttk", 10*time.Second)
	s.levels = nil
	s.orders = make(map[string]gridOrder)
	symbol, exchanges := s.symbol, append([]algo.Exchange(nil), s.exchanges...)
	quantity, gridCount := s.quantity, s.gridCount
	s.mu.Unlock()

	if !quantity.IsPositive() || gridCount < 2 || len(exchanges) == 0 {
		s.Logger().Warn("scalpbot configuration rejected",
			observability.F("quantity", quantity.String()),
			observability.F("grid_count", gridCount),
			observability.F("exchanges", len(exchanges)))
		return false, nil
	}

	pending := make([]<-chan error, 0, len(exchanges))
	for _, exchange := range exchanges {
		pending = append(pending, gw.SubscribeSymbolAsync(ctx, algo.SubscribeRequest{
			Symbol:           symbol,
			Exchange:         exchange,
			GetHistorical:    true,
			DepthLevels:      algo.DefaultDepthLevels,
			CandlesTimeframe: algo.DefaultTimeframe,
		}))
	}
	for i, ch := range pending {
		select {
		case err := <-ch:
			if err != nil {
				s.Logger().Warn("scalpbot subscription failed",
					observability.F("exchange", string(exchanges[i])),
					observability.Err(err))
				return false, nil
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	s.Logger().Info("scalpbot started",
		observability.F("symbol", symbol),
		observability.F("exchanges", len(exchanges)))
	return true, nil
}

// Stop cancels every resting order.
func (s *Scalpbot) Stop(ctx context.Context) error {
	gw := s.Gateway()
	s.mu.Lock()
	defer s.mu.Unlock()
	if gw == nil {
		return nil
	}
	for id := range s.orders {
		if _, err := gw.CancelOrder(ctx, algo.CancelRequest{OrderID: id}); err != nil {
			s.Logger().Warn("scalpbot cancel on stop failed", observability.F("order_id", id), observability.Err(err))
		}
	}
	s.orders = make(map[string]gridOrder)
	return nil
}

// ProcessDepthOfBook builds the grid from the first live book of the traded symbol.
func (s *Scalpbot) ProcessDepthOfBook(ctx context.Context, book algo.DepthOfBook) error {
	if book.Historical || s.Paused() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) == 0 || !strings.EqualFold(book.Symbol, s.symbol) {
		return nil
	}

	s.expireLocked(ctx)
	if len(s.orders) > 0 {
		return nil
	}

	bid, okBid := book.BestBid()
	offer, okOffer := book.BestOffer()
	if !okBid || !okOffer {
		return nil
	}
	s.levels = gridLevels(bid.Price, offer.Price, s.upperDelta, s.lowerDelta, s.offerThreshold, s.gridCount)
	if len(s.levels) == 0 {
		return nil
	}
	exchange := book.Exchange
	if exchange == "" || exchange == algo.ExchangeUnknown {
		exchange = s.exchanges[0]
	}
	for i := 0; i < s.gridCount/2; i++ {
		s.placeLocked(ctx, algo.SideBuy, s.levels[i], exchange)
	}
	s.Logger().Info("scalpbot grid initialised",
		observability.F("lower", s.levels[0].String()),
		observability.F("upper", s.levels[len(s.levels)-1].String()),
		observability.F("orders", len(s.orders)))
	return nil
}

// ProcessOrderStatus rolls filled grid orders to the opposite side.
func (s *Scalpbot) ProcessOrderStatus(ctx context.Context, status algo.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[status.OrderID]
	if !ok {
		s.Logger().Debug("scalpbot status for unknown order", observability.F("order_id", status.OrderID))
		return nil
	}
	switch status.State {
	case algo.OrderStateFilled:
		delete(s.orders, status.OrderID)
		if s.Paused() {
			return nil
		}
		switch order.side {
		case algo.SideBuy:
			if next, ok := nextLevelAbove(s.levels, order.price); ok {
				s.placeLocked(ctx, algo.SideSell, next, order.exchange)
			}
		case algo.SideSell:
			if next, ok := nextLevelBelow(s.levels, order.price); ok {
				s.placeLocked(ctx, algo.SideBuy, next, order.exchange)
			}
		}
	case algo.OrderStateCancelled, algo.OrderStateRejected:
		delete(s.orders, status.OrderID)
	}
	return nil
}

// Configuration implements algo.ConfigReporter.
func (s *Scalpbot) Configuration() algo.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	exchanges := make([]string, 0, len(s.exchanges))
	for _, ex := range s.exchanges {
		exchanges = append(exchanges, string(ex))
	}
	return algo.Config{
		"symbol":          s.symbol,
		"exchange":        strings.Join(exchanges, ","),
		"order_quantity":  s.quantity.String(),
		"offer_threshold": s.offerThreshold.String(),
		"upper_delta":     s.upperDelta.String(),
		"lower_delta":     s.lowerDelta.String(),
		"grid_count":      s.gridCount,
		"order_ttk":       s.orderTTK.Seconds(),
		"open_orders":     len(s.orders),
	}
}

func (s *Scalpbot) placeLocked(ctx context.Context, side algo.Side, price decimal.Decimal, exchange algo.Exchange) {
	gw := s.Gateway()
	if gw == nil {
		return
	}
	price = price.Round(scalpbotPricePlaces)
	res, err := gw.SendOrder(ctx, algo.OrderRequest{
		Symbol:   s.symbol,
		Exchange: exchange,
		Side:     side,
		Type:     algo.OrderTypeLimit,
		Price:    price,
		Quantity: s.quantity,
	})
	if err != nil {
		s.Logger().Warn("scalpbot order failed",
			observability.F("side", string(side)),
			observability.F("price", price.String()),
			observability.Err(err))
		return
	}
	if !res.Success {
		s.Logger().Warn("scalpbot order refused",
			observability.F("side", string(side)),
			observability.F("price", price.String()),
			observability.F("reason", res.Reason))
		return
	}
	s.orders[res.OrderID] = gridOrder{side: side, price: price, exchange: exchange, placedAt: s.now()}
}

// expireLocked cancels buys resting longer than the configured time to keep.
func (s *Scalpbot) expireLocked(ctx context.Context) {
	gw := s.Gateway()
	if gw == nil || s.orderTTK <= 0 {
		return
	}
	now := s.now()
	for id, order := range s.orders {
		if order.side != algo.SideBuy || now.Sub(order.placedAt) < s.orderTTK {
			continue
		}
		res, err := gw.CancelOrder(ctx, algo.CancelRequest{OrderID: id})
		if err != nil || !res.Success {
			continue
		}
		delete(s.orders, id)
	}
}

func parseExchanges(raw string) []algo.Exchange {
	out := make([]algo.Exchange, 0)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, algo.ParseExchange(part))
	}
	return out
}

// gridLevels spaces count levels evenly between the grid bounds. The top level
// is the lower of bid*(1+upperDelta) and offer-threshold; the bottom lies
// lowerDelta below it.
func gridLevels(bid, offer, upperDelta, lowerDelta, threshold decimal.Decimal, count int) []decimal.Decimal {
	if count < 2 {
		return nil
	}
	one := decimal.NewFromInt(1)
	upper := decimal.Min(bid.Mul(one.Add(upperDelta)), offer.Sub(threshold))
	if !upper.IsPositive() {
		return nil
	}
	lower := upper.Mul(one.Sub(lowerDelta))
	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(count - 1)))
	levels := make([]decimal.Decimal, count)
	for i := range levels {
		levels[i] = lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	return levels
}

func nextLevelAbove(levels []decimal.Decimal, price decimal.Decimal) (decimal.Decimal, bool) {
	for _, lvl := range levels {
		if lvl.Round(scalpbotPricePlaces).GreaterThan(price) {
			return lvl, true
		}
	}
	return decimal.Zero, false
}

func nextLevelBelow(levels []decimal.Decimal, price decimal.Decimal) (decimal.Decimal, bool) {
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].Round(scalpbotPricePlaces).LessThan(price) {
			return levels[i], true
		}
	}
	return decimal.Zero, false
}
