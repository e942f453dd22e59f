package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/coachpo/algohost/internal/app/gateway"
	"github.com/coachpo/algohost/internal/domain/algo"
)

// PlatformClient forwards gateway calls to the platform's algos.Platform service.
type PlatformClient struct {
	conn  grpc.ClientConnInterface
	close func() error
}

var _ gateway.Platform = (*PlatformClient)(nil)

// DialPlatform creates a client for the platform listening on addr. The
// connection is established lazily on the first call.
func DialPlatform(addr string, opts ...grpc.DialOption) (*PlatformClient, error) {
	target := strings.TrimSpace(addr)
	if target == "" {
		return nil, fmt.Errorf("platform address required")
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial platform %s: %w", target, err)
	}
	return &PlatformClient{conn: conn, close: conn.Close}, nil
}

// NewPlatformClient wraps an existing connection. Close is a no-op.
func NewPlatformClient(conn grpc.ClientConnInterface) *PlatformClient {
	return &PlatformClient{conn: conn}
}

// Close releases the underlying connection when the client owns it.
func (c *PlatformClient) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// SendOrder implements gateway.Platform.
func (c *PlatformClient) SendOrder(ctx context.Context, instanceID string, req algo.OrderRequest) (algo.OrderResult, error) {
	in := &SendOrderRequest{
		InstanceID: instanceID,
		MessageID:  req.MessageID,
		Symbol:     req.Symbol,
		Exchange:   string(req.Exchange),
		Side:       string(req.Side),
		Type:       string(req.Type),
		Price:      req.Price,
		Quantity:   req.Quantity,
		Simulated:  req.Simulated != nil && *req.Simulated,
	}
	out, err := invoke[SendOrderResponse](ctx, c.conn, PlatformServiceName, "SendOrder", in)
	if err != nil {
		return algo.OrderResult{}, err
	}
	return algo.OrderResult{Success: out.Success, Reason: out.Reason, OrderID: out.OrderID, MessageID: out.MessageID}, nil
}

// CancelOrder implements gateway.Platform.
func (c *PlatformClient) CancelOrder(ctx context.Context, instanceID string, req algo.CancelRequest) (algo.CancelResult, error) {
	in := &CancelOrderRequest{
		InstanceID: instanceID,
		MessageID:  req.MessageID,
		OrderID:    req.OrderID,
		Simulated:  req.Simulated != nil && *req.Simulated,
	}
	out, err := invoke[CancelOrderResponse](ctx, c.conn, PlatformServiceName, "CancelOrder", in)
	if err != nil {
		return algo.CancelResult{}, err
	}
	return algo.CancelResult{Success: out.Success, Reason: out.Reason, MessageID: out.MessageID}, nil
}

// SubscribeSymbol implements gateway.Platform.
func (c *PlatformClient) SubscribeSymbol(ctx context.Context, instanceID string, req algo.SubscribeRequest) (algo.SubscribeResult, error) {
	timeframe := req.CandlesTimeframe
	if timeframe == "" {
		timeframe = algo.DefaultTimeframe
	}
	in := &SubscribeSymbolRequest{
		InstanceID:        instanceID,
		MessageID:         req.MessageID,
		Symbol:            req.Symbol,
		Exchange:          string(req.Exchange),
		GetHistorical:     req.GetHistorical,
		DepthOfBookLevels: req.DepthLevels,
		CandlesTimeframe:  string(timeframe),
	}
	out, err := invoke[Result](ctx, c.conn, PlatformServiceName, "SubscribeSymbol", in)
	if err != nil {
		return algo.SubscribeResult{}, err
	}
	return algo.SubscribeResult{Success: out.Success, Reason: out.Reason}, nil
}

// GetOrderStatus implements gateway.Platform.
func (c *PlatformClient) GetOrderStatus(ctx context.Context, instanceID string, req algo.OrderStatusRequest) (algo.OrderStatusResult, error) {
	in := &GetOrderStatusRequest{InstanceID: instanceID, MessageID: req.MessageID, OrderID: req.OrderID}
	out, err := invoke[GetOrderStatusResponse](ctx, c.conn, PlatformServiceName, "GetOrderStatus", in)
	if err != nil {
		return algo.OrderStatusResult{}, err
	}
	res := algo.OrderStatusResult{Success: out.Success, Reason: out.Reason}
	if out.Order != nil {
		res.Status = OrderStatusToDomain(out.Order)
	}
	return res, nil
}

// GetAccountBalance implements gateway.Platform.
func (c *PlatformClient) GetAccountBalance(ctx context.Context, instanceID string, req algo.BalanceRequest) (algo.BalanceResult, error) {
	in := &GetAccountBalanceRequest{
		InstanceID: instanceID,
		MessageID:  req.MessageID,
		Exchange:   string(req.Exchange),
		Asset:      req.Asset,
	}
	out, err := invoke[GetAccountBalanceResponse](ctx, c.conn, PlatformServiceName, "GetAccountBalance", in)
	if err != nil {
		return algo.BalanceResult{}, err
	}
	return algo.BalanceResult{Success: out.Success, Reason: out.Reason, Balances: balancesToDomain(out.Balances)}, nil
}

// GetAllOrders implements gateway.Platform.
func (c *PlatformClient) GetAllOrders(ctx context.Context, instanceID string, req algo.OrdersRequest) (algo.OrdersResult, error) {
	in := &GetAllOrdersRequest{
		InstanceID: instanceID,
		MessageID:  req.MessageID,
		Exchange:   string(req.Exchange),
		Symbol:     req.Symbol,
	}
	out, err := invoke[GetAllOrdersResponse](ctx, c.conn, PlatformServiceName, "GetAllOrders", in)
	if err != nil {
		return algo.OrdersResult{}, err
	}
	return algo.OrdersResult{Success: out.Success, Reason: out.Reason, Orders: ordersToDomain(out.Orders)}, nil
}
