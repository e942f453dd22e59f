package algo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind enumerates the market event kinds routed to algorithms.
type EventKind string

const (
	EventTrade       EventKind = "trade"
	EventCandle      EventKind = "candle"
	EventDepthOfBook EventKind = "depth_of_book"
	EventOrderStatus EventKind = "order_status"
)

// EventKinds lists every routable kind.
var EventKinds = []EventKind{EventTrade, EventCandle, EventDepthOfBook, EventOrderStatus}

// Exchange identifies a trading venue by its platform name.
type Exchange string

const (
	ExchangeUnknown   Exchange = "UNKNOWN"
	ExchangeBinance   Exchange = "BINANCE"
	ExchangeBinanceUS Exchange = "BINANCEUS"
	ExchangeCoinbase  Exchange = "COINBASE"
	ExchangeKraken    Exchange = "KRAKEN"
	ExchangeOKX       Exchange = "OKX"
)

var knownExchanges = map[string]Exchange{
	"BINANCE":   ExchangeBinance,
	"BINANCEUS": ExchangeBinanceUS,
	"COINBASE":  ExchangeCoinbase,
	"KRAKEN":    ExchangeKraken,
	"OKX":       ExchangeOKX,
}

// ParseExchange resolves a venue name case-insensitively, ignoring separators.
// Unrecognised names map to ExchangeUnknown.
func ParseExchange(name string) Exchange {
	key := strings.ToUpper(strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(strings.TrimSpace(name)))
	if ex, ok := knownExchanges[key]; ok {
		return ex
	}
	return ExchangeUnknown
}

// Side captures order or trade direction.
type Side string

const (
	SideUnknown Side = "UNKNOWN"
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
)

// ParseSide resolves a side name case-insensitively.
func ParseSide(name string) Side {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BUY", "BID", "BUY_OPEN", "BUY_CLOSE":
		return SideBuy
	case "SELL", "ASK", "OFFER", "SELL_OPEN", "SELL_CLOSE":
		return SideSell
	default:
		return SideUnknown
	}
}

// OrderType enumerates supported order types.
type OrderType string

const (
	OrderTypeUnknown OrderType = "UNKNOWN"
	OrderTypeLimit   OrderType = "LIMIT"
	OrderTypeMarket  OrderType = "MARKET"
)

// ParseOrderType resolves an order type case-insensitively.
func ParseOrderType(name string) OrderType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LIMIT":
		return OrderTypeLimit
	case "MARKET":
		return OrderTypeMarket
	default:
		return OrderTypeUnknown
	}
}

// Timeframe is a candle aggregation period.
type Timeframe string

const (
	TimeframeOneMinute      Timeframe = "ONE_MINUTE"
	TimeframeFiveMinutes    Timeframe = "FIVE_MINUTES"
	TimeframeFifteenMinutes Timeframe = "FIFTEEN_MINUTES"
	TimeframeOneHour        Timeframe = "ONE_HOUR"
	TimeframeOneDay         Timeframe = "ONE_DAY"
)

// DefaultTimeframe is used when a subscription does not name one.
const DefaultTimeframe = TimeframeFiveMinutes

// ParseTimeframe resolves a timeframe name, falling back to DefaultTimeframe.
func ParseTimeframe(name string) Timeframe {
	switch tf := Timeframe(strings.ToUpper(strings.TrimSpace(name))); tf {
	case TimeframeOneMinute, TimeframeFiveMinutes, TimeframeFifteenMinutes, TimeframeOneHour, TimeframeOneDay:
		return tf
	default:
		return DefaultTimeframe
	}
}

// OrderState enumerates order lifecycle states reported by the platform.
type OrderState string

const (
	OrderStateUnknown         OrderState = "UNKNOWN"
	OrderStateNew             OrderState = "NEW"
	OrderStatePartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderStateFilled          OrderState = "FILLED"
	OrderStateCancelled       OrderState = "CANCELLED"
	OrderStateRejected        OrderState = "REJECTED"
)

// ParseOrderState resolves a platform order state name. Unrecognised names
// map to OrderStateUnknown.
func ParseOrderState(name string) OrderState {
	switch st := OrderState(strings.ToUpper(strings.TrimSpace(name))); st {
	case OrderStateNew, OrderStatePartiallyFilled, OrderStateFilled, OrderStateCancelled, OrderStateRejected:
		return st
	case "CANCELED":
		return OrderStateCancelled
	default:
		return OrderStateUnknown
	}
}

// Terminal reports whether no further updates are expected for the order.
func (s OrderState) Terminal() bool {
	return s == OrderStateFilled || s == OrderStateCancelled || s == OrderStateRejected
}

// Trade is an executed trade on a venue.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Exchange   Exchange        `json:"exchange"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Time       time.Time       `json:"time"`
	Historical bool            `json:"historical"`
}

// Candle is an OHLCV bar.
type Candle struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Exchange   Exchange        `json:"exchange"`
	Timeframe  Timeframe       `json:"timeframe"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
	Time       time.Time       `json:"time"`
	Historical bool            `json:"historical"`
}

// Level is one price level of an order book side.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DepthOfBook is an order book snapshot.
type DepthOfBook struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Exchange   Exchange  `json:"exchange"`
	Bids       []Level   `json:"bids"`
	Offers     []Level   `json:"offers"`
	Time       time.Time `json:"time"`
	Historical bool      `json:"historical"`
}

// BestBid returns the top bid level.
func (b DepthOfBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestOffer returns the top offer level.
func (b DepthOfBook) BestOffer() (Level, bool) {
	if len(b.Offers) == 0 {
		return Level{}, false
	}
	return b.Offers[0], true
}

// OrderStatus is an order update addressed to a single instance.
type OrderStatus struct {
	InstanceID     string          `json:"instanceId"`
	MessageID      int64           `json:"messageId"`
	OrderID        string          `json:"orderId"`
	Symbol         string          `json:"symbol"`
	Exchange       Exchange        `json:"exchange"`
	Side           Side            `json:"side"`
	State          OrderState      `json:"state"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filledQuantity"`
	Reason         string          `json:"reason,omitempty"`
	Time           time.Time       `json:"time"`
}
