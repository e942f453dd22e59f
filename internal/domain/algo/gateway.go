package algo

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the outbound facade an instance uses to act on the platform.
// Every call is attributed to the instance the gateway was created for.
// Failures are returned as errors, never raised.
type Gateway interface {
	InstanceID() string
	SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, req CancelRequest) (CancelResult, error)
	SubscribeSymbol(ctx context.Context, req SubscribeRequest) (SubscribeResult, error)
	// SubscribeSymbolAsync runs the subscription detached from ctx's
	// cancellation and reports its outcome on the returned channel.
	SubscribeSymbolAsync(ctx context.Context, req SubscribeRequest) <-chan error
	GetOrderStatus(ctx context.Context, req OrderStatusRequest) (OrderStatusResult, error)
	GetAccountBalance(ctx context.Context, req BalanceRequest) (BalanceResult, error)
	GetAllOrders(ctx context.Context, req OrdersRequest) (OrdersResult, error)
}

// OrderRequest submits a new order. A zero MessageID is assigned by the gateway.
// A nil Simulated inherits the host default.
type OrderRequest struct {
	Symbol    string          `json:"symbol"`
	Exchange  Exchange        `json:"exchange"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	MessageID int64           `json:"messageId"`
	Simulated *bool           `json:"simulated,omitempty"`
}

// OrderResult is the platform's answer to an order submission.
type OrderResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	MessageID int64  `json:"messageId"`
}

// CancelRequest cancels an order by id.
type CancelRequest struct {
	OrderID   string `json:"orderId"`
	MessageID int64  `json:"messageId"`
	Simulated *bool  `json:"simulated,omitempty"`
}

// CancelResult is the platform's answer to a cancel.
type CancelResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	MessageID int64  `json:"messageId"`
}

// SubscribeRequest asks the platform to stream market data for a symbol.
type SubscribeRequest struct {
	Symbol           string    `json:"symbol"`
	Exchange         Exchange  `json:"exchange"`
	GetHistorical    bool      `json:"getHistorical"`
	DepthLevels      int       `json:"depthLevels"`
	CandlesTimeframe Timeframe `json:"candlesTimeframe"`
	MessageID        int64     `json:"messageId"`
}

// DefaultDepthLevels is used when a subscription does not name a depth.
const DefaultDepthLevels = 10

// SubscribeResult is the platform's answer to a subscription.
type SubscribeResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// OrderStatusRequest queries a single order.
type OrderStatusRequest struct {
	OrderID   string `json:"orderId"`
	MessageID int64  `json:"messageId"`
}

// OrderStatusResult carries the queried order.
type OrderStatusResult struct {
	Success bool        `json:"success"`
	Reason  string      `json:"reason,omitempty"`
	Status  OrderStatus `json:"status"`
}

// BalanceRequest queries account balances on a venue. An empty Asset returns all.
type BalanceRequest struct {
	Exchange  Exchange `json:"exchange"`
	Asset     string   `json:"asset,omitempty"`
	MessageID int64    `json:"messageId"`
}

// Balance is the holding of one asset.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// BalanceResult carries account balances.
type BalanceResult struct {
	Success  bool      `json:"success"`
	Reason   string    `json:"reason,omitempty"`
	Balances []Balance `json:"balances"`
}

// OrdersRequest lists the instance's orders, optionally narrowed by venue and symbol.
type OrdersRequest struct {
	Exchange  Exchange `json:"exchange,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	MessageID int64    `json:"messageId"`
}

// OrdersResult carries a list of orders.
type OrdersResult struct {
	Success bool          `json:"success"`
	Reason  string        `json:"reason,omitempty"`
	Orders  []OrderStatus `json:"orders"`
}
