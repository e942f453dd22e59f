package risk

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
)

func limitOrder(qty, price string) algo.OrderRequest {
	return algo.OrderRequest{
		Type:     algo.OrderTypeLimit,
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
	}
}

func TestManager_CheckOrder_Throttle(t *testing.T) {
	manager := NewManager(Limits{OrderThrottle: 1, OrderBurst: 3})
	req := limitOrder("1", "10")

	for i := 0; i < 3; i++ {
		if err := manager.CheckOrder(context.Background(), "a", req); err != nil {
			t.Fatalf("order %d should have passed, but got error: %v", i+1, err)
		}
	}

	err := manager.CheckOrder(context.Background(), "a", req)
	if !errs.Is(err, errs.CodeRateLimited) {
		t.Fatalf("4th order should have been throttled, got %v", err)
	}
}

func TestManager_CheckOrder_Unthrottled(t *testing.T) {
	manager := NewManager(Limits{})
	for i := 0; i < 100; i++ {
		if err := manager.CheckOrder(context.Background(), "a", limitOrder("1", "1")); err != nil {
			t.Fatalf("unexpected error without limits: %v", err)
		}
	}
}

func TestManager_CheckOrder_Limits(t *testing.T) {
	manager := NewManager(Limits{
		MaxOrderQuantity: decimal.NewFromInt(10),
		MaxOrderNotional: decimal.NewFromInt(1000),
	})

	cases := []struct {
		name string
		req  algo.OrderRequest
		ok   bool
	}{
		{"within limits", limitOrder("5", "100"), true},
		{"quantity over max", limitOrder("11", "1"), false},
		{"notional over max", limitOrder("10", "100.01"), false},
		{"zero quantity", limitOrder("0", "1"), false},
		{"limit without price", limitOrder("1", "0"), false},
		{"market ignores notional", algo.OrderRequest{Type: algo.OrderTypeMarket, Quantity: decimal.NewFromInt(10)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := manager.CheckOrder(context.Background(), "a", tc.req)
			if tc.ok && err != nil {
				t.Fatalf("expected order to pass, got %v", err)
			}
			if !tc.ok && !errs.Is(err, errs.CodeInvalid) {
				t.Fatalf("expected invalid_request, got %v", err)
			}
		})
	}
}
