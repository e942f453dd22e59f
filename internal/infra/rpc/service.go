package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// HostServiceName is the inbound service the host exposes to the platform.
	HostServiceName = "algos.AlgorithmHost"
	// PlatformServiceName is the outbound service the host calls on the platform.
	PlatformServiceName = "algos.Platform"
)

// AlgorithmHostServer is the inbound RPC surface.
type AlgorithmHostServer interface {
	InitializeAlgorithm(context.Context, *InitializeRequest) (*InitializeResponse, error)
	StartAlgorithm(context.Context, *StartRequest) (*Result, error)
	PauseAlgorithm(context.Context, *InstanceRequest) (*Result, error)
	ResumeAlgorithm(context.Context, *InstanceRequest) (*Result, error)
	StopAlgorithm(context.Context, *InstanceRequest) (*Result, error)
	TradeEvent(context.Context, *Trade) (*EventAck, error)
	CandleEvent(context.Context, *Candle) (*EventAck, error)
	DepthOfBookEvent(context.Context, *DepthOfBook) (*EventAck, error)
	OrderStatusEvent(context.Context, *OrderStatus) (*OrderStatusAck, error)
	ListAvailableAlgorithms(context.Context, *ListRequest) (*ListAvailableResponse, error)
	ListRunningAlgorithms(context.Context, *ListRequest) (*ListRunningResponse, error)
}

// PlatformServer is the platform's RPC surface as seen by the host.
type PlatformServer interface {
	SendOrder(context.Context, *SendOrderRequest) (*SendOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	SubscribeSymbol(context.Context, *SubscribeSymbolRequest) (*Result, error)
	GetOrderStatus(context.Context, *GetOrderStatusRequest) (*GetOrderStatusResponse, error)
	GetAccountBalance(context.Context, *GetAccountBalanceRequest) (*GetAccountBalanceResponse, error)
	GetAllOrders(context.Context, *GetAllOrdersRequest) (*GetAllOrdersResponse, error)
}

// unary builds a method descriptor that decodes Req and dispatches to call.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AlgorithmHostServiceDesc describes algos.AlgorithmHost.
var AlgorithmHostServiceDesc = grpc.ServiceDesc{
	ServiceName: HostServiceName,
	HandlerType: (*AlgorithmHostServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(HostServiceName, "InitializeAlgorithm", AlgorithmHostServer.InitializeAlgorithm),
		unary(HostServiceName, "StartAlgorithm", AlgorithmHostServer.StartAlgorithm),
		unary(HostServiceName, "PauseAlgorithm", AlgorithmHostServer.PauseAlgorithm),
		unary(HostServiceName, "ResumeAlgorithm", AlgorithmHostServer.ResumeAlgorithm),
		unary(HostServiceName, "StopAlgorithm", AlgorithmHostServer.StopAlgorithm),
		unary(HostServiceName, "TradeEvent", AlgorithmHostServer.TradeEvent),
		unary(HostServiceName, "CandleEvent", AlgorithmHostServer.CandleEvent),
		unary(HostServiceName, "DepthOfBookEvent", AlgorithmHostServer.DepthOfBookEvent),
		unary(HostServiceName, "OrderStatusEvent", AlgorithmHostServer.OrderStatusEvent),
		unary(HostServiceName, "ListAvailableAlgorithms", AlgorithmHostServer.ListAvailableAlgorithms),
		unary(HostServiceName, "ListRunningAlgorithms", AlgorithmHostServer.ListRunningAlgorithms),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "algos/host.proto",
}

// PlatformServiceDesc describes algos.Platform.
var PlatformServiceDesc = grpc.ServiceDesc{
	ServiceName: PlatformServiceName,
	HandlerType: (*PlatformServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PlatformServiceName, "SendOrder", PlatformServer.SendOrder),
		unary(PlatformServiceName, "CancelOrder", PlatformServer.CancelOrder),
		unary(PlatformServiceName, "SubscribeSymbol", PlatformServer.SubscribeSymbol),
		unary(PlatformServiceName, "GetOrderStatus", PlatformServer.GetOrderStatus),
		unary(PlatformServiceName, "GetAccountBalance", PlatformServer.GetAccountBalance),
		unary(PlatformServiceName, "GetAllOrders", PlatformServer.GetAllOrders),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "algos/platform.proto",
}

// RegisterAlgorithmHostServer registers srv on s.
func RegisterAlgorithmHostServer(s grpc.ServiceRegistrar, srv AlgorithmHostServer) {
	s.RegisterService(&AlgorithmHostServiceDesc, srv)
}

// RegisterPlatformServer registers srv on s.
func RegisterPlatformServer(s grpc.ServiceRegistrar, srv PlatformServer) {
	s.RegisterService(&PlatformServiceDesc, srv)
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, service, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AlgorithmHostClient calls algos.AlgorithmHost. The platform side and tests use it.
type AlgorithmHostClient struct {
	conn grpc.ClientConnInterface
}

// NewAlgorithmHostClient wraps conn.
func NewAlgorithmHostClient(conn grpc.ClientConnInterface) *AlgorithmHostClient {
	return &AlgorithmHostClient{conn: conn}
}

// InitializeAlgorithm creates an instance of the named algorithm.
func (c *AlgorithmHostClient) InitializeAlgorithm(ctx context.Context, in *InitializeRequest, opts ...grpc.CallOption) (*InitializeResponse, error) {
	return invoke[InitializeResponse](ctx, c.conn, HostServiceName, "InitializeAlgorithm", in, opts...)
}

// StartAlgorithm starts an initialized instance with a JSON configuration.
func (c *AlgorithmHostClient) StartAlgorithm(ctx context.Context, in *StartRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.conn, HostServiceName, "StartAlgorithm", in, opts...)
}

// PauseAlgorithm pauses a running instance.
func (c *AlgorithmHostClient) PauseAlgorithm(ctx context.Context, in *InstanceRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.conn, HostServiceName, "PauseAlgorithm", in, opts...)
}

// ResumeAlgorithm resumes a paused instance.
func (c *AlgorithmHostClient) ResumeAlgorithm(ctx context.Context, in *InstanceRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.conn, HostServiceName, "ResumeAlgorithm", in, opts...)
}

// StopAlgorithm stops an instance and removes it from the host.
func (c *AlgorithmHostClient) StopAlgorithm(ctx context.Context, in *InstanceRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.conn, HostServiceName, "StopAlgorithm", in, opts...)
}

// TradeEvent delivers a trade to interested instances.
func (c *AlgorithmHostClient) TradeEvent(ctx context.Context, in *Trade, opts ...grpc.CallOption) (*EventAck, error) {
	return invoke[EventAck](ctx, c.conn, HostServiceName, "TradeEvent", in, opts...)
}

// CandleEvent delivers a candle to interested instances.
func (c *AlgorithmHostClient) CandleEvent(ctx context.Context, in *Candle, opts ...grpc.CallOption) (*EventAck, error) {
	return invoke[EventAck](ctx, c.conn, HostServiceName, "CandleEvent", in, opts...)
}

// DepthOfBookEvent delivers a book snapshot to interested instances.
func (c *AlgorithmHostClient) DepthOfBookEvent(ctx context.Context, in *DepthOfBook, opts ...grpc.CallOption) (*EventAck, error) {
	return invoke[EventAck](ctx, c.conn, HostServiceName, "DepthOfBookEvent", in, opts...)
}

// OrderStatusEvent delivers an order update to the instance it names.
func (c *AlgorithmHostClient) OrderStatusEvent(ctx context.Context, in *OrderStatus, opts ...grpc.CallOption) (*OrderStatusAck, error) {
	return invoke[OrderStatusAck](ctx, c.conn, HostServiceName, "OrderStatusEvent", in, opts...)
}

// ListAvailableAlgorithms lists the algorithms the host can construct.
func (c *AlgorithmHostClient) ListAvailableAlgorithms(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListAvailableResponse, error) {
	return invoke[ListAvailableResponse](ctx, c.conn, HostServiceName, "ListAvailableAlgorithms", in, opts...)
}

// ListRunningAlgorithms lists running and paused instances.
func (c *AlgorithmHostClient) ListRunningAlgorithms(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListRunningResponse, error) {
	return invoke[ListRunningResponse](ctx, c.conn, HostServiceName, "ListRunningAlgorithms", in, opts...)
}
