package rpc

import (
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Result is the common success/reason pair of lifecycle responses.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// InitializeRequest asks the host to create an instance of a named algorithm.
type InitializeRequest struct {
	InstanceID string `json:"instanceId"`
	Name       string `json:"name"`
}

// InitializeResponse reports the new instance's event interests and config panel.
type InitializeResponse struct {
	Success           bool   `json:"success"`
	Reason            string `json:"reason,omitempty"`
	ListenTrades      bool   `json:"listenTrades"`
	ListenCandles     bool   `json:"listenCandles"`
	ListenDepthOfBook bool   `json:"listenDepthOfBook"`
	ListenOrderStatus bool   `json:"listenOrderStatus"`
	HasConfigPanel    bool   `json:"hasConfigPanel"`
	ConfigSchema      string `json:"configSchema,omitempty"`
}

// StartRequest starts an instance with a JSON configuration document.
type StartRequest struct {
	InstanceID string `json:"instanceId"`
	ConfigJSON string `json:"configJson"`
}

// InstanceRequest addresses a lifecycle call to one instance.
type InstanceRequest struct {
	InstanceID string `json:"instanceId"`
}

// Trade is the wire form of an executed trade.
type Trade struct {
	ID         string                 `json:"id"`
	Symbol     string                 `json:"symbol"`
	Exchange   string                 `json:"exchange"`
	Side       string                 `json:"side"`
	Price      decimal.Decimal        `json:"price"`
	Quantity   decimal.Decimal        `json:"quantity"`
	Timestamp  *timestamppb.Timestamp `json:"timestamp,omitempty"`
	Historical bool                   `json:"historical"`
}

// Candle is the wire form of an OHLCV bar.
type Candle struct {
	ID         string                 `json:"id"`
	Symbol     string                 `json:"symbol"`
	Exchange   string                 `json:"exchange"`
	Timeframe  string                 `json:"timeframe"`
	Open       decimal.Decimal        `json:"open"`
	High       decimal.Decimal        `json:"high"`
	Low        decimal.Decimal        `json:"low"`
	Close      decimal.Decimal        `json:"close"`
	Volume     decimal.Decimal        `json:"volume"`
	Timestamp  *timestamppb.Timestamp `json:"timestamp,omitempty"`
	Historical bool                   `json:"historical"`
}

// Level is one price level of a book side.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DepthOfBook is the wire form of an order book snapshot.
type DepthOfBook struct {
	ID         string                 `json:"id"`
	Symbol     string                 `json:"symbol"`
	Exchange   string                 `json:"exchange"`
	Bids       []Level                `json:"bids"`
	Offers     []Level                `json:"offers"`
	Timestamp  *timestamppb.Timestamp `json:"timestamp,omitempty"`
	Historical bool                   `json:"historical"`
}

// OrderStatus is the wire form of an order update.
type OrderStatus struct {
	InstanceID     string                 `json:"instanceId"`
	MessageID      int64                  `json:"messageId"`
	OrderID        string                 `json:"orderId"`
	Symbol         string                 `json:"symbol"`
	Exchange       string                 `json:"exchange"`
	Side           string                 `json:"side"`
	State          string                 `json:"state"`
	Price          decimal.Decimal        `json:"price"`
	Quantity       decimal.Decimal        `json:"quantity"`
	FilledQuantity decimal.Decimal        `json:"filledQuantity"`
	Reason         string                 `json:"reason,omitempty"`
	Timestamp      *timestamppb.Timestamp `json:"timestamp,omitempty"`
}

// EventAck acknowledges a broadcast event.
type EventAck struct {
	ID string `json:"id"`
}

// OrderStatusAck acknowledges an order update.
type OrderStatusAck struct {
	InstanceID string `json:"instanceId"`
	MessageID  int64  `json:"messageId"`
}

// ListRequest filters discovery results by a case-insensitive name substring.
type ListRequest struct {
	NameFilter string `json:"nameFilter"`
}

// AlgorithmInfo describes an algorithm type.
type AlgorithmInfo struct {
	Name              string   `json:"name"`
	DisplayName       string   `json:"displayName"`
	Description       string   `json:"description"`
	Version           string   `json:"version"`
	Author            string   `json:"author"`
	Tags              []string `json:"tags"`
	HasConfigPanel    bool     `json:"hasConfigPanel"`
	ConfigSchema      string   `json:"configSchema,omitempty"`
	ListenTrades      bool     `json:"listenTrades"`
	ListenCandles     bool     `json:"listenCandles"`
	ListenDepthOfBook bool     `json:"listenDepthOfBook"`
	ListenOrderStatus bool     `json:"listenOrderStatus"`
}

// ListAvailableResponse lists installable algorithms.
type ListAvailableResponse struct {
	Success    bool            `json:"success"`
	Reason     string          `json:"reason,omitempty"`
	Algorithms []AlgorithmInfo `json:"algorithms"`
}

// RunningAlgorithm describes a live instance.
type RunningAlgorithm struct {
	AlgorithmInfo
	InstanceID string                 `json:"instanceId"`
	State      string                 `json:"state"`
	ConfigJSON string                 `json:"configJson"`
	CreatedAt  *timestamppb.Timestamp `json:"createdAt,omitempty"`
}

// ListRunningResponse lists running and paused instances.
type ListRunningResponse struct {
	Success    bool               `json:"success"`
	Reason     string             `json:"reason,omitempty"`
	Algorithms []RunningAlgorithm `json:"algorithms"`
}

// SendOrderRequest is the outbound order submission.
type SendOrderRequest struct {
	InstanceID string          `json:"instanceId"`
	MessageID  int64           `json:"messageId"`
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	Side       string          `json:"side"`
	Type       string          `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Simulated  bool            `json:"simulated"`
}

// SendOrderResponse answers SendOrderRequest.
type SendOrderResponse struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	MessageID int64  `json:"messageId"`
}

// CancelOrderRequest is the outbound cancel.
type CancelOrderRequest struct {
	InstanceID string `json:"instanceId"`
	MessageID  int64  `json:"messageId"`
	OrderID    string `json:"orderId"`
	Simulated  bool   `json:"simulated"`
}

// CancelOrderResponse answers CancelOrderRequest.
type CancelOrderResponse struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	MessageID int64  `json:"messageId"`
}

// SubscribeSymbolRequest asks the platform to stream a symbol.
type SubscribeSymbolRequest struct {
	InstanceID        string `json:"instanceId"`
	MessageID         int64  `json:"messageId"`
	Symbol            string `json:"symbol"`
	Exchange          string `json:"exchange"`
	GetHistorical     bool   `json:"getHistorical"`
	DepthOfBookLevels int    `json:"depthOfBookLevels"`
	CandlesTimeframe  string `json:"candlesTimeframe"`
}

// GetOrderStatusRequest queries a single order.
type GetOrderStatusRequest struct {
	InstanceID string `json:"instanceId"`
	MessageID  int64  `json:"messageId"`
	OrderID    string `json:"orderId"`
}

// GetOrderStatusResponse carries the queried order.
type GetOrderStatusResponse struct {
	Success bool         `json:"success"`
	Reason  string       `json:"reason,omitempty"`
	Order   *OrderStatus `json:"order,omitempty"`
}

// Balance is one asset holding.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// GetAccountBalanceRequest queries balances on a venue.
type GetAccountBalanceRequest struct {
	InstanceID string `json:"instanceId"`
	MessageID  int64  `json:"messageId"`
	Exchange   string `json:"exchange"`
	Asset      string `json:"asset,omitempty"`
}

// GetAccountBalanceResponse carries balances.
type GetAccountBalanceResponse struct {
	Success  bool      `json:"success"`
	Reason   string    `json:"reason,omitempty"`
	Balances []Balance `json:"balances"`
}

// GetAllOrdersRequest lists the instance's orders.
type GetAllOrdersRequest struct {
	InstanceID string `json:"instanceId"`
	MessageID  int64  `json:"messageId"`
	Exchange   string `json:"exchange,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
}

// GetAllOrdersResponse carries orders.
type GetAllOrdersResponse struct {
	Success bool          `json:"success"`
	Reason  string        `json:"reason,omitempty"`
	Orders  []OrderStatus `json:"orders"`
}
