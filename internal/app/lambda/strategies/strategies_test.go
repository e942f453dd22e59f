package strategies

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/app/registry"
	"github.com/coachpo/algohost/internal/domain/algo"
)

type stubGateway struct {
	mu            sync.Mutex
	orders        []algo.OrderRequest
	orderIDs      []string
	cancels       []string
	subscribes    []algo.SubscribeRequest
	failSubscribe map[algo.Exchange]bool
	refuseOrders  bool
}

func (g *stubGateway) InstanceID() string { return "scalp-1" }

func (g *stubGateway) SendOrder(_ context.Context, req algo.OrderRequest) (algo.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refuseOrders {
		return algo.OrderResult{Success: false, Reason: "insufficient balance"}, nil
	}
	g.orders = append(g.orders, req)
	id := fmt.Sprintf("o-%d", len(g.orders))
	g.orderIDs = append(g.orderIDs, id)
	return algo.OrderResult{Success: true, OrderID: id}, nil
}

func (g *stubGateway) CancelOrder(_ context.Context, req algo.CancelRequest) (algo.CancelResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, req.OrderID)
	return algo.CancelResult{Success: true}, nil
}

func (g *stubGateway) SubscribeSymbol(_ context.Context, req algo.SubscribeRequest) (algo.SubscribeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribes = append(g.subscribes, req)
	if g.failSubscribe[req.Exchange] {
		return algo.SubscribeResult{Success: false, Reason: "unknown symbol"}, nil
	}
	return algo.SubscribeResult{Success: true}, nil
}

func (g *stubGateway) SubscribeSymbolAsync(ctx context.Context, req algo.SubscribeRequest) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		res, err := g.SubscribeSymbol(ctx, req)
		if err == nil && !res.Success {
			err = errors.New(res.Reason)
		}
		out <- err
	}()
	return out
}

func (g *stubGateway) GetOrderStatus(context.Context, algo.OrderStatusRequest) (algo.OrderStatusResult, error) {
	return algo.OrderStatusResult{}, nil
}

func (g *stubGateway) GetAccountBalance(context.Context, algo.BalanceRequest) (algo.BalanceResult, error) {
	return algo.BalanceResult{}, nil
}

func (g *stubGateway) GetAllOrders(context.Context, algo.OrdersRequest) (algo.OrdersResult, error) {
	return algo.OrdersResult{}, nil
}

func TestRegisterBuiltins(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	require.Equal(t, []string{"ExampleAlgorithm", "NoOpAlgorithm", "Scalpbot", "SimpleTestAlgorithm"}, reg.Names())

	a, canonical, err := reg.FindByName("example")
	require.NoError(t, err)
	require.Equal(t, "ExampleAlgorithm", canonical)
	require.IsType(t, &Example{}, a)

	err = Register(reg)
	require.True(t, errs.Is(err, errs.CodeConflict))
}

func TestBuiltinInterests(t *testing.T) {
	all := algo.Interests{Trades: true, Candles: true, DepthOfBook: true, OrderStatus: true}
	require.Equal(t, all, algo.HooksOf(NewExample()).Interests())
	require.Equal(t, all, algo.HooksOf(NewSimpleTest()).Interests())
	require.Equal(t, algo.Interests{DepthOfBook: true, OrderStatus: true}, algo.HooksOf(NewScalpbot()).Interests())

	noop := algo.HooksOf(NewNoOp())
	require.Equal(t, algo.Interests{}, noop.Interests())
	require.Nil(t, noop.Stop)
	require.Nil(t, noop.Pause)

	require.True(t, algo.Describe("Scalpbot", NewScalpbot()).HasConfigPanel())
	require.False(t, algo.Describe("NoOpAlgorithm", NewNoOp()).HasConfigPanel())
}

func TestExampleCountsEvents(t *testing.T) {
	e := NewExample()
	ctx := context.Background()
	require.NoError(t, e.ProcessTrade(ctx, []algo.Trade{{ID: "1"}, {ID: "2"}}))
	require.NoError(t, e.ProcessCandle(ctx, []algo.Candle{{ID: "c"}}))
	require.NoError(t, e.ProcessDepthOfBook(ctx, algo.DepthOfBook{ID: "b"}))
	require.NoError(t, e.ProcessOrderStatus(ctx, algo.OrderStatus{OrderID: "o"}))

	trades, candles, books, updates := e.Counts()
	require.EqualValues(t, 2, trades)
	require.EqualValues(t, 1, candles)
	require.EqualValues(t, 1, books)
	require.EqualValues(t, 1, updates)
}

func TestSimpleTestReportsConfigurationAndLastPrice(t *testing.T) {
	s := NewSimpleTest()
	ctx := context.Background()
	ok, err := s.Start(ctx, algo.Config{"symbol": "ETHUSD", "test_parameter": 5.0})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.ProcessTrade(ctx, []algo.Trade{
		{Price: decimal.NewFromInt(10)},
		{Price: decimal.RequireFromString("10.5")},
	}))
	require.Equal(t, "10.5", s.LastPrice().String())

	require.NoError(t, s.ProcessCandle(ctx, []algo.Candle{{Close: decimal.NewFromInt(11)}}))
	cfg := s.Configuration()
	require.Equal(t, "ETHUSD", cfg["symbol"])
	require.Equal(t, 5.0, cfg["test_parameter"])
	require.Equal(t, "11", cfg["last_price"])
}

func scalpbotConfig(exchanges string) algo.Config {
	return algo.Config{
		"symbol":          "BTC-USD",
		"exchange":        exchanges,
		"offer_threshold": 50.0,
		"upper_delta":     0.0,
		"lower_delta":     0.001,
		"grid_count":      10.0,
		"order_ttk":       10.0,
		"order_quantity":  0.5,
	}
}

func startedScalpbot(t *testing.T) (*Scalpbot, *stubGateway) {
	t.Helper()
	bot := NewScalpbot()
	gw := &stubGateway{}
	bot.BindGateway(gw)
	ok, err := bot.Start(context.Background(), scalpbotConfig("coinbase"))
	require.NoError(t, err)
	require.True(t, ok)
	return bot, gw
}

func liveBook() algo.DepthOfBook {
	return algo.DepthOfBook{
		ID:       "b-1",
		Symbol:   "BTC-USD",
		Exchange: algo.ExchangeCoinbase,
		Bids:     []algo.Level{{Price: decimal.NewFromInt(100000), Quantity: decimal.NewFromInt(1)}},
		Offers:   []algo.Level{{Price: decimal.NewFromInt(100100), Quantity: decimal.NewFromInt(1)}},
	}
}

func TestScalpbotSubscribesEveryExchange(t *testing.T) {
	bot := NewScalpbot()
	gw := &stubGateway{}
	bot.BindGateway(gw)

	ok, err := bot.Start(context.Background(), scalpbotConfig("BinanceUS, Coinbase"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, gw.subscribes, 2)
	venues := []algo.Exchange{gw.subscribes[0].Exchange, gw.subscribes[1].Exchange}
	require.ElementsMatch(t, []algo.Exchange{algo.ExchangeBinanceUS, algo.ExchangeCoinbase}, venues)
	for _, sub := range gw.subscribes {
		require.True(t, sub.GetHistorical)
		require.Equal(t, "BTC-USD", sub.Symbol)
	}
}

func TestScalpbotRefusesStart(t *testing.T) {
	bot := NewScalpbot()
	gw := &stubGateway{failSubscribe: map[algo.Exchange]bool{algo.ExchangeKraken: true}}
	bot.BindGateway(gw)

	ok, err := bot.Start(context.Background(), scalpbotConfig("coinbase,kraken"))
	require.NoError(t, err)
	require.False(t, ok)

	cfg := scalpbotConfig("coinbase")
	cfg["order_quantity"] = 0.0
	ok, err = bot.Start(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = NewScalpbot().Start(context.Background(), scalpbotConfig("coinbase"))
	require.Error(t, err)
}

func TestScalpbotBuildsGridFromLiveBook(t *testing.T) {
	bot, gw := startedScalpbot(t)
	ctx := context.Background()

	historical := liveBook()
	historical.Historical = true
	require.NoError(t, bot.ProcessDepthOfBook(ctx, historical))
	require.Empty(t, gw.orders)

	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Len(t, gw.orders, 5)
	require.True(t, gw.orders[0].Price.Equal(decimal.NewFromInt(99900)))
	for _, order := range gw.orders {
		require.Equal(t, algo.SideBuy, order.Side)
		require.Equal(t, algo.OrderTypeLimit, order.Type)
		require.Equal(t, algo.ExchangeCoinbase, order.Exchange)
		require.True(t, order.Quantity.Equal(decimal.RequireFromString("0.5")))
		require.True(t, order.Price.LessThan(decimal.NewFromInt(100000)))
	}

	// A grid is only laid once while orders rest.
	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Len(t, gw.orders, 5)
	require.EqualValues(t, 5, bot.Configuration()["open_orders"])
}

func TestScalpbotRollsFilledOrders(t *testing.T) {
	bot, gw := startedScalpbot(t)
	ctx := context.Background()
	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))

	require.NoError(t, bot.ProcessOrderStatus(ctx, algo.OrderStatus{OrderID: gw.orderIDs[0], State: algo.OrderStateFilled}))
	require.Len(t, gw.orders, 6)
	sell := gw.orders[5]
	require.Equal(t, algo.SideSell, sell.Side)
	require.True(t, sell.Price.GreaterThan(gw.orders[0].Price))
	require.True(t, sell.Price.LessThan(gw.orders[1].Price.Add(decimal.RequireFromString("0.00000001"))))

	require.NoError(t, bot.ProcessOrderStatus(ctx, algo.OrderStatus{OrderID: gw.orderIDs[5], State: algo.OrderStateFilled}))
	require.Len(t, gw.orders, 7)
	require.Equal(t, algo.SideBuy, gw.orders[6].Side)
	require.True(t, gw.orders[6].Price.Equal(gw.orders[0].Price))

	require.NoError(t, bot.ProcessOrderStatus(ctx, algo.OrderStatus{OrderID: gw.orderIDs[1], State: algo.OrderStateRejected}))
	require.NoError(t, bot.ProcessOrderStatus(ctx, algo.OrderStatus{OrderID: "unknown", State: algo.OrderStateFilled}))
	require.Len(t, gw.orders, 7)
	require.EqualValues(t, 4, bot.Configuration()["open_orders"])
}

func TestScalpbotExpiresStaleBuysAndRebuilds(t *testing.T) {
	bot, gw := startedScalpbot(t)
	ctx := context.Background()
	now := time.Now()
	bot.now = func() time.Time { return now }

	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Len(t, gw.orders, 5)

	now = now.Add(11 * time.Second)
	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Len(t, gw.cancels, 5)
	require.Len(t, gw.orders, 10)
}

func TestScalpbotPausedSkipsBook(t *testing.T) {
	bot, gw := startedScalpbot(t)
	ctx := context.Background()
	require.NoError(t, bot.Pause(ctx))
	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Empty(t, gw.orders)

	require.NoError(t, bot.Resume(ctx))
	require.NoError(t, bot.ProcessDepthOfBook(ctx, liveBook()))
	require.Len(t, gw.orders, 5)

	require.NoError(t, bot.Stop(ctx))
	require.Len(t, gw.cancels, 5)
}

func TestGridLevels(t *testing.T) {
	levels := gridLevels(decimal.NewFromInt(100), decimal.NewFromInt(101), decimal.Zero,
		decimal.RequireFromString("0.1"), decimal.NewFromInt(50), 3)
	require.Len(t, levels, 3)
	// offer-threshold (51) is below bid*(1+0) so it bounds the grid.
	require.True(t, levels[2].Equal(decimal.NewFromInt(51)))
	require.True(t, levels[0].Equal(decimal.RequireFromString("45.9")))

	require.Nil(t, gridLevels(decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.Zero, decimal.Zero, decimal.NewFromInt(50), 5))
	require.Nil(t, gridLevels(decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.Zero, decimal.Zero, decimal.Zero, 1))
}
