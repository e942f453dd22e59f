package rpc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/coachpo/algohost/internal/app/gateway"
	"github.com/coachpo/algohost/internal/app/lambda/runtime"
	"github.com/coachpo/algohost/internal/app/lambda/strategies"
	"github.com/coachpo/algohost/internal/app/registry"
	"github.com/coachpo/algohost/internal/domain/algo"
)

const bufSize = 1 << 20

func dialBuf(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type hostFixture struct {
	client   *AlgorithmHostClient
	conn     *grpc.ClientConn
	mu       sync.Mutex
	examples []*strategies.Example
}

func (f *hostFixture) lastExample() *strategies.Example {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.examples[len(f.examples)-1]
}

func newHostFixture(t *testing.T, platform gateway.Platform) *hostFixture {
	t.Helper()
	f := &hostFixture{}

	reg := registry.New()
	require.NoError(t, reg.Register("ExampleAlgorithm", func() (algo.Algorithm, error) {
		e := strategies.NewExample()
		f.mu.Lock()
		f.examples = append(f.examples, e)
		f.mu.Unlock()
		return e, nil
	}))
	require.NoError(t, reg.Register("NoOpAlgorithm", func() (algo.Algorithm, error) {
		return strategies.NewNoOp(), nil
	}))
	require.NoError(t, reg.Register("Scalpbot", func() (algo.Algorithm, error) {
		return strategies.NewScalpbot(), nil
	}))

	table := runtime.NewTable()
	gateways := gateway.NewFactory(gateway.Options{Platform: platform, Simulated: true})
	srv, err := NewServer(Options{
		Manager:   runtime.NewManager(reg, table, runtime.Options{Gateways: gateways}),
		Router:    runtime.NewRouter(table, runtime.RouterOptions{FanoutWorkers: 4}),
		Discovery: runtime.NewDiscovery(reg, table, nil),
	})
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.GracefulStop(context.Background()) })

	f.conn = dialBuf(t, lis)
	f.client = NewAlgorithmHostClient(f.conn)
	return f
}

func TestHostExampleScenario(t *testing.T) {
	f := newHostFixture(t, nil)
	ctx := context.Background()

	initRes, err := f.client.InitializeAlgorithm(ctx, &InitializeRequest{InstanceID: "id-1", Name: "Example"})
	require.NoError(t, err)
	require.True(t, initRes.Success, initRes.Reason)
	require.True(t, initRes.ListenTrades)
	require.True(t, initRes.ListenCandles)
	require.True(t, initRes.ListenDepthOfBook)

	startRes, err := f.client.StartAlgorithm(ctx, &StartRequest{InstanceID: "id-1", ConfigJSON: "{}"})
	require.NoError(t, err)
	require.True(t, startRes.Success, startRes.Reason)

	running, err := f.client.ListRunningAlgorithms(ctx, &ListRequest{})
	require.NoError(t, err)
	require.Len(t, running.Algorithms, 1)
	require.Equal(t, "id-1", running.Algorithms[0].InstanceID)
	require.Equal(t, algo.StateRunning.String(), running.Algorithms[0].State)

	ack, err := f.client.TradeEvent(ctx, &Trade{
		ID:        "t-1",
		Symbol:    "SOL-USD",
		Exchange:  "coinbase",
		Side:      "buy",
		Price:     decimal.RequireFromString("101.25"),
		Quantity:  decimal.RequireFromString("2"),
		Timestamp: timestamppb.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "t-1", ack.ID)
	trades, _, _, _ := f.lastExample().Counts()
	require.EqualValues(t, 1, trades)

	stopRes, err := f.client.StopAlgorithm(ctx, &InstanceRequest{InstanceID: "id-1"})
	require.NoError(t, err)
	require.True(t, stopRes.Success, stopRes.Reason)

	running, err = f.client.ListRunningAlgorithms(ctx, &ListRequest{})
	require.NoError(t, err)
	require.True(t, running.Success)
	require.Empty(t, running.Algorithms)

	again, err := f.client.StopAlgorithm(ctx, &InstanceRequest{InstanceID: "id-1"})
	require.NoError(t, err)
	require.False(t, again.Success)
	require.NotEmpty(t, again.Reason)
}

func TestHostFailuresAreResults(t *testing.T) {
	f := newHostFixture(t, nil)
	ctx := context.Background()

	res, err := f.client.InitializeAlgorithm(ctx, &InitializeRequest{InstanceID: "x", Name: "Missing"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Reason)

	pause, err := f.client.PauseAlgorithm(ctx, &InstanceRequest{InstanceID: "x"})
	require.NoError(t, err)
	require.False(t, pause.Success)

	noop, err := f.client.InitializeAlgorithm(ctx, &InitializeRequest{InstanceID: "n", Name: "NoOp"})
	require.NoError(t, err)
	require.True(t, noop.Success)
	require.False(t, noop.ListenTrades)
	require.False(t, noop.ListenOrderStatus)

	ack, err := f.client.TradeEvent(ctx, &Trade{Symbol: "BTC-USD"})
	require.NoError(t, err)
	require.NotEmpty(t, ack.ID)

	statusAck, err := f.client.OrderStatusEvent(ctx, &OrderStatus{InstanceID: "ghost", MessageID: 7, State: "FILLED"})
	require.NoError(t, err)
	require.Equal(t, "ghost", statusAck.InstanceID)
	require.Equal(t, int64(7), statusAck.MessageID)
}

func TestHostListAvailable(t *testing.T) {
	f := newHostFixture(t, nil)
	ctx := context.Background()

	all, err := f.client.ListAvailableAlgorithms(ctx, &ListRequest{})
	require.NoError(t, err)
	require.True(t, all.Success)
	names := make([]string, 0, len(all.Algorithms))
	for _, a := range all.Algorithms {
		names = append(names, a.Name)
	}
	require.ElementsMatch(t, []string{"ExampleAlgorithm", "NoOpAlgorithm", "Scalpbot"}, names)

	none, err := f.client.ListAvailableAlgorithms(ctx, &ListRequest{NameFilter: "does-not-exist"})
	require.NoError(t, err)
	require.True(t, none.Success)
	require.Empty(t, none.Algorithms)
}

func TestHostHealth(t *testing.T) {
	f := newHostFixture(t, nil)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: HostServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

type fakePlatformServer struct {
	mu         sync.Mutex
	orders     []*SendOrderRequest
	subscribes []*SubscribeSymbolRequest
}

func (p *fakePlatformServer) SendOrder(_ context.Context, req *SendOrderRequest) (*SendOrderResponse, error) {
	p.mu.Lock()
	p.orders = append(p.orders, req)
	p.mu.Unlock()
	return &SendOrderResponse{Success: true, OrderID: "ord-" + req.Symbol, MessageID: req.MessageID}, nil
}

func (p *fakePlatformServer) CancelOrder(_ context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	return &CancelOrderResponse{Success: true, MessageID: req.MessageID}, nil
}

func (p *fakePlatformServer) SubscribeSymbol(_ context.Context, req *SubscribeSymbolRequest) (*Result, error) {
	p.mu.Lock()
	p.subscribes = append(p.subscribes, req)
	p.mu.Unlock()
	return &Result{Success: true}, nil
}

func (p *fakePlatformServer) GetOrderStatus(_ context.Context, req *GetOrderStatusRequest) (*GetOrderStatusResponse, error) {
	return &GetOrderStatusResponse{Success: true, Order: &OrderStatus{
		InstanceID: req.InstanceID,
		OrderID:    req.OrderID,
		State:      "PARTIALLY_FILLED",
		Quantity:   decimal.NewFromInt(3),
	}}, nil
}

func (p *fakePlatformServer) GetAccountBalance(context.Context, *GetAccountBalanceRequest) (*GetAccountBalanceResponse, error) {
	return &GetAccountBalanceResponse{Success: true, Balances: []Balance{{Asset: "USD", Free: decimal.NewFromInt(250)}}}, nil
}

func (p *fakePlatformServer) GetAllOrders(context.Context, *GetAllOrdersRequest) (*GetAllOrdersResponse, error) {
	return &GetAllOrdersResponse{Success: true, Orders: []OrderStatus{{OrderID: "a", State: "NEW"}}}, nil
}

func (p *fakePlatformServer) subscriptions() []*SubscribeSymbolRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*SubscribeSymbolRequest(nil), p.subscribes...)
}

func newPlatform(t *testing.T) (*fakePlatformServer, *PlatformClient) {
	t.Helper()
	fake := &fakePlatformServer{}
	srv := grpc.NewServer()
	RegisterPlatformServer(srv, fake)
	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return fake, NewPlatformClient(dialBuf(t, lis))
}

func TestPlatformClientRoundTrip(t *testing.T) {
	fake, client := newPlatform(t)
	ctx := context.Background()
	simulated := true

	res, err := client.SendOrder(ctx, "inst-9", algo.OrderRequest{
		Symbol:    "ETH-USDT",
		Exchange:  algo.ExchangeBinanceUS,
		Side:      algo.SideSell,
		Type:      algo.OrderTypeLimit,
		Price:     decimal.RequireFromString("3000.125"),
		Quantity:  decimal.RequireFromString("0.5"),
		MessageID: 99,
		Simulated: &simulated,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "ord-ETH-USDT", res.OrderID)
	require.Equal(t, int64(99), res.MessageID)

	fake.mu.Lock()
	sent := fake.orders[0]
	fake.mu.Unlock()
	require.Equal(t, "inst-9", sent.InstanceID)
	require.True(t, sent.Simulated)
	require.True(t, decimal.RequireFromString("3000.125").Equal(sent.Price))

	status, err := client.GetOrderStatus(ctx, "inst-9", algo.OrderStatusRequest{OrderID: "o-1"})
	require.NoError(t, err)
	require.Equal(t, algo.OrderStatePartiallyFilled, status.Status.State)
	require.Equal(t, "inst-9", status.Status.InstanceID)

	balances, err := client.GetAccountBalance(ctx, "inst-9", algo.BalanceRequest{Exchange: algo.ExchangeCoinbase})
	require.NoError(t, err)
	require.Len(t, balances.Balances, 1)
	require.True(t, decimal.NewFromInt(250).Equal(balances.Balances[0].Free))

	orders, err := client.GetAllOrders(ctx, "inst-9", algo.OrdersRequest{})
	require.NoError(t, err)
	require.Len(t, orders.Orders, 1)
	require.Equal(t, algo.OrderStateNew, orders.Orders[0].State)
}

func TestScalpbotSubscribesThroughPlatform(t *testing.T) {
	fake, client := newPlatform(t)
	f := newHostFixture(t, client)
	ctx := context.Background()

	initRes, err := f.client.InitializeAlgorithm(ctx, &InitializeRequest{InstanceID: "scalp", Name: "scalpbot"})
	require.NoError(t, err)
	require.True(t, initRes.Success, initRes.Reason)
	require.True(t, initRes.HasConfigPanel)

	cfg := `{"symbol":"BTC-USD","exchange":"COINBASE,KRAKEN","offer_threshold":1,"upper_delta":5,"lower_delta":5,"grid_count":4,"order_ttk":60,"order_quantity":0.01}`
	startRes, err := f.client.StartAlgorithm(ctx, &StartRequest{InstanceID: "scalp", ConfigJSON: cfg})
	require.NoError(t, err)
	require.True(t, startRes.Success, startRes.Reason)

	subs := fake.subscriptions()
	require.Len(t, subs, 2)
	for _, s := range subs {
		require.Equal(t, "scalp", s.InstanceID)
		require.Equal(t, "BTC-USD", s.Symbol)
		require.NotZero(t, s.MessageID)
	}
}
