package gateway

import (
	"context"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
)

// Offline is the Platform used when no platform endpoint is configured. Every
// call fails with errs.CodeUnavailable.
type Offline struct{}

var _ Platform = Offline{}

func offline(op, instanceID string) error {
	return errs.New(op, errs.CodeUnavailable, errs.WithInstance(instanceID),
		errs.WithMessage("no platform endpoint configured"))
}

// SendOrder implements Platform.
func (Offline) SendOrder(_ context.Context, instanceID string, _ algo.OrderRequest) (algo.OrderResult, error) {
	return algo.OrderResult{}, offline("send_order", instanceID)
}

// CancelOrder implements Platform.
func (Offline) CancelOrder(_ context.Context, instanceID string, _ algo.CancelRequest) (algo.CancelResult, error) {
	return algo.CancelResult{}, offline("cancel_order", instanceID)
}

// SubscribeSymbol implements Platform.
func (Offline) SubscribeSymbol(_ context.Context, instanceID string, _ algo.SubscribeRequest) (algo.SubscribeResult, error) {
	return algo.SubscribeResult{}, offline("subscribe_symbol", instanceID)
}

// GetOrderStatus implements Platform.
func (Offline) GetOrderStatus(_ context.Context, instanceID string, _ algo.OrderStatusRequest) (algo.OrderStatusResult, error) {
	return algo.OrderStatusResult{}, offline("get_order_status", instanceID)
}

// GetAccountBalance implements Platform.
func (Offline) GetAccountBalance(_ context.Context, instanceID string, _ algo.BalanceRequest) (algo.BalanceResult, error) {
	return algo.BalanceResult{}, offline("get_account_balance", instanceID)
}

// GetAllOrders implements Platform.
func (Offline) GetAllOrders(_ context.Context, instanceID string, _ algo.OrdersRequest) (algo.OrdersResult, error) {
	return algo.OrdersResult{}, offline("get_all_orders", instanceID)
}
