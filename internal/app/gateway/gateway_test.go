package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/infra/persistence/memory"
	"github.com/coachpo/algohost/internal/risk"
)

type call struct {
	instanceID string
	op         string
	req        any
}

type fakePlatform struct {
	mu        sync.Mutex
	calls     []call
	err       error
	subscribe algo.SubscribeResult
}

func (p *fakePlatform) record(instanceID, op string, req any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{instanceID: instanceID, op: op, req: req})
	return p.err
}

func (p *fakePlatform) snapshot() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

func (p *fakePlatform) SendOrder(_ context.Context, id string, req algo.OrderRequest) (algo.OrderResult, error) {
	if err := p.record(id, "send", req); err != nil {
		return algo.OrderResult{}, err
	}
	return algo.OrderResult{Success: true, OrderID: "ord-1"}, nil
}

func (p *fakePlatform) CancelOrder(_ context.Context, id string, req algo.CancelRequest) (algo.CancelResult, error) {
	if err := p.record(id, "cancel", req); err != nil {
		return algo.CancelResult{}, err
	}
	return algo.CancelResult{Success: true, MessageID: req.MessageID}, nil
}

func (p *fakePlatform) SubscribeSymbol(_ context.Context, id string, req algo.SubscribeRequest) (algo.SubscribeResult, error) {
	if err := p.record(id, "subscribe", req); err != nil {
		return algo.SubscribeResult{}, err
	}
	return p.subscribe, nil
}

func (p *fakePlatform) GetOrderStatus(_ context.Context, id string, req algo.OrderStatusRequest) (algo.OrderStatusResult, error) {
	if err := p.record(id, "status", req); err != nil {
		return algo.OrderStatusResult{}, err
	}
	return algo.OrderStatusResult{Success: true, Status: algo.OrderStatus{OrderID: req.OrderID}}, nil
}

func (p *fakePlatform) GetAccountBalance(_ context.Context, id string, req algo.BalanceRequest) (algo.BalanceResult, error) {
	if err := p.record(id, "balance", req); err != nil {
		return algo.BalanceResult{}, err
	}
	return algo.BalanceResult{Success: true}, nil
}

func (p *fakePlatform) GetAllOrders(_ context.Context, id string, req algo.OrdersRequest) (algo.OrdersResult, error) {
	if err := p.record(id, "orders", req); err != nil {
		return algo.OrdersResult{}, err
	}
	return algo.OrdersResult{Success: true}, nil
}

func order() algo.OrderRequest {
	return algo.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     algo.SideBuy,
		Type:     algo.OrderTypeLimit,
		Price:    decimal.NewFromInt(100),
		Quantity: decimal.NewFromInt(1),
	}
}

func TestSendOrderTagsInstanceAndMessageID(t *testing.T) {
	platform := &fakePlatform{}
	store := memory.NewJournalStore(16)
	factory := NewFactory(Options{Platform: platform, Recorder: store, Simulated: true})
	gw := factory.New("inst-1", nil)

	res, err := gw.SendOrder(context.Background(), order())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotZero(t, res.MessageID)

	calls := platform.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "inst-1", calls[0].instanceID)
	sent := calls[0].req.(algo.OrderRequest)
	require.Equal(t, res.MessageID, sent.MessageID)
	require.NotNil(t, sent.Simulated)
	require.True(t, *sent.Simulated)

	explicit := order()
	explicit.MessageID = 42
	live := false
	explicit.Simulated = &live
	res, err = gw.SendOrder(context.Background(), explicit)
	require.NoError(t, err)
	require.Equal(t, int64(42), res.MessageID)
	sent = platform.snapshot()[1].req.(algo.OrderRequest)
	require.False(t, *sent.Simulated)

	entries, err := store.List(context.Background(), "inst-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, journal.OpSendOrder, entries[0].Operation)
	require.Equal(t, int64(42), entries[0].MessageID)
	require.True(t, entries[0].Success)
	require.Contains(t, string(entries[0].Request), `"symbol":"BTCUSDT"`)
}

func TestMessageIDsAreDistinctUnderBurst(t *testing.T) {
	now := time.Unix(1700000000, 0)
	seen := make(map[int64]struct{})
	for i := 0; i < 50; i++ {
		id := NewMessageID(now)
		require.GreaterOrEqual(t, id, now.UnixMicro()*1000)
		require.Less(t, id, now.UnixMicro()*1000+1000)
		seen[id] = struct{}{}
	}
	require.Greater(t, len(seen), 1)
}

func TestSendOrderRefusedWhilePaused(t *testing.T) {
	platform := &fakePlatform{}
	paused := true
	gw := NewFactory(Options{Platform: platform}).New("inst-1", func() bool { return paused })

	res, err := gw.SendOrder(context.Background(), order())
	require.True(t, errs.Is(err, errs.CodePaused))
	require.False(t, res.Success)
	require.NotEmpty(t, res.Reason)
	require.Empty(t, platform.snapshot())

	paused = false
	_, err = gw.SendOrder(context.Background(), order())
	require.NoError(t, err)
	require.Len(t, platform.snapshot(), 1)
}

func TestSendOrderRiskRejection(t *testing.T) {
	platform := &fakePlatform{}
	gw := NewFactory(Options{
		Platform: platform,
		Limits:   risk.Limits{MaxOrderQuantity: decimal.RequireFromString("0.5")},
	}).New("inst-1", nil)

	_, err := gw.SendOrder(context.Background(), order())
	require.True(t, errs.Is(err, errs.CodeInvalid))
	require.Empty(t, platform.snapshot())
}

func TestTransportFailureBecomesResult(t *testing.T) {
	platform := &fakePlatform{err: errors.New("connection refused")}
	gw := NewFactory(Options{Platform: platform}).New("inst-1", nil)

	res, err := gw.CancelOrder(context.Background(), algo.CancelRequest{OrderID: "o-1"})
	require.True(t, errs.Is(err, errs.CodeTransport))
	require.False(t, res.Success)
	require.Contains(t, res.Reason, "connection refused")
	require.NotZero(t, res.MessageID)

	balances, err := gw.GetAccountBalance(context.Background(), algo.BalanceRequest{})
	require.True(t, errs.Is(err, errs.CodeTransport))
	require.False(t, balances.Success)
}

func TestCallsAttributedUnderConcurrency(t *testing.T) {
	platform := &fakePlatform{}
	factory := NewFactory(Options{Platform: platform})
	ids := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for _, id := range ids {
		gw := factory.New(id, nil)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = gw.GetOrderStatus(context.Background(), algo.OrderStatusRequest{OrderID: gw.InstanceID()})
			}()
		}
	}
	wg.Wait()

	calls := platform.snapshot()
	require.Len(t, calls, 60)
	for _, c := range calls {
		require.Equal(t, c.instanceID, c.req.(algo.OrderStatusRequest).OrderID)
	}
}

func TestSubscribeSymbolAsync(t *testing.T) {
	platform := &fakePlatform{subscribe: algo.SubscribeResult{Success: true}}
	gw := NewFactory(Options{Platform: platform}).New("inst-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := gw.SubscribeSymbolAsync(ctx, algo.SubscribeRequest{Symbol: "ETHUSDT"})
	cancel()
	require.NoError(t, <-done)

	sent := platform.snapshot()[0].req.(algo.SubscribeRequest)
	require.Equal(t, algo.DefaultDepthLevels, sent.DepthLevels)

	platform.subscribe = algo.SubscribeResult{Success: false, Reason: "unknown symbol"}
	err := <-gw.SubscribeSymbolAsync(context.Background(), algo.SubscribeRequest{Symbol: "NOPE"})
	require.Error(t, err)
	require.Contains(t, errs.Reason(err), "unknown symbol")
}

func TestOfflinePlatform(t *testing.T) {
	gw := NewFactory(Options{}).New("inst-1", nil)

	_, err := gw.GetAllOrders(context.Background(), algo.OrdersRequest{})
	require.True(t, errs.Is(err, errs.CodeUnavailable))
	_, err = gw.SendOrder(context.Background(), order())
	require.True(t, errs.Is(err, errs.CodeUnavailable))
}
