package algo

import "context"

// Hooks is the explicit capability set of an algorithm. A nil field means the
// capability is not implemented.
type Hooks struct {
	Pause       func(ctx context.Context) error
	Resume      func(ctx context.Context) error
	Stop        func(ctx context.Context) error
	Trade       func(ctx context.Context, trades []Trade) error
	Candle      func(ctx context.Context, candles []Candle) error
	DepthOfBook func(ctx context.Context, book DepthOfBook) error
	OrderStatus func(ctx context.Context, status OrderStatus) error
}

// Interests reports which market event kinds an algorithm listens to.
type Interests struct {
	Trades      bool `json:"listenTrades"`
	Candles     bool `json:"listenCandles"`
	DepthOfBook bool `json:"listenDepthOfBook"`
	OrderStatus bool `json:"listenOrderStatus"`
}

// Has reports interest in the given event kind.
func (i Interests) Has(kind EventKind) bool {
	switch kind {
	case EventTrade:
		return i.Trades
	case EventCandle:
		return i.Candles
	case EventDepthOfBook:
		return i.DepthOfBook
	case EventOrderStatus:
		return i.OrderStatus
	default:
		return false
	}
}

// Interests derives event interest from the non-nil hooks.
func (h Hooks) Interests() Interests {
	return Interests{
		Trades:      h.Trade != nil,
		Candles:     h.Candle != nil,
		DepthOfBook: h.DepthOfBook != nil,
		OrderStatus: h.OrderStatus != nil,
	}
}

// HooksOf resolves the capability set of a. An explicit HookProvider wins over
// the hook interfaces.
func HooksOf(a Algorithm) Hooks {
	if a == nil {
		return Hooks{}
	}
	if provider, ok := a.(HookProvider); ok {
		return provider.Hooks()
	}
	var h Hooks
	if v, ok := a.(Pauser); ok {
		h.Pause = v.Pause
	}
	if v, ok := a.(Resumer); ok {
		h.Resume = v.Resume
	}
	if v, ok := a.(Stopper); ok {
		h.Stop = v.Stop
	}
	if v, ok := a.(TradeProcessor); ok {
		h.Trade = v.ProcessTrade
	}
	if v, ok := a.(CandleProcessor); ok {
		h.Candle = v.ProcessCandle
	}
	if v, ok := a.(DepthOfBookProcessor); ok {
		h.DepthOfBook = v.ProcessDepthOfBook
	}
	if v, ok := a.(OrderStatusProcessor); ok {
		h.OrderStatus = v.ProcessOrderStatus
	}
	return h
}
