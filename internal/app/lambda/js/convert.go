package js

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// gatewayHelpers exposes the bound gateway to scripts as env.gateway. Each helper
// takes a plain object and returns a plain object. A failed call returns
// {success: false, reason} to the script; only malformed arguments and a missing
// gateway throw.
func (a *Algorithm) gatewayHelpers() map[string]any {
	return map[string]any{
		"instanceId": func() string {
			gw, err := a.bridge.gw()
			if err != nil {
				return ""
			}
			return gw.InstanceID()
		},
		"sendOrder": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			order, err := orderRequestFromJS(req)
			if err != nil {
				return nil, err
			}
			res, err := gw.SendOrder(a.callContext(), order)
			if err != nil {
				return a.gatewayFailure("send_order", order.MessageID, err), nil
			}
			return map[string]any{
				"success":   res.Success,
				"reason":    res.Reason,
				"orderId":   res.OrderID,
				"messageId": res.MessageID,
			}, nil
		},
		"cancelOrder": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			res, err := gw.CancelOrder(a.callContext(), algo.CancelRequest{
				OrderID:   stringField(req, "orderId"),
				MessageID: intField(req, "messageId"),
				Simulated: boolPtrField(req, "simulated"),
			})
			if err != nil {
				return a.gatewayFailure("cancel_order", intField(req, "messageId"), err), nil
			}
			return map[string]any{"success": res.Success, "reason": res.Reason, "messageId": res.MessageID}, nil
		},
		"subscribeSymbol": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			res, err := gw.SubscribeSymbol(a.callContext(), subscribeRequestFromJS(req))
			if err != nil {
				return a.gatewayFailure("subscribe_symbol", intField(req, "messageId"), err), nil
			}
			return map[string]any{"success": res.Success, "reason": res.Reason}, nil
		},
		"getOrderStatus": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			res, err := gw.GetOrderStatus(a.callContext(), algo.OrderStatusRequest{
				OrderID:   stringField(req, "orderId"),
				MessageID: intField(req, "messageId"),
			})
			if err != nil {
				return a.gatewayFailure("get_order_status", intField(req, "messageId"), err), nil
			}
			return map[string]any{"success": res.Success, "reason": res.Reason, "status": orderStatusToJS(res.Status)}, nil
		},
		"getAccountBalance": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			res, err := gw.GetAccountBalance(a.callContext(), algo.BalanceRequest{
				Exchange:  algo.ParseExchange(stringField(req, "exchange")),
				Asset:     stringField(req, "asset"),
				MessageID: intField(req, "messageId"),
			})
			if err != nil {
				return a.gatewayFailure("get_account_balance", intField(req, "messageId"), err), nil
			}
			balances := make([]map[string]any, 0, len(res.Balances))
			for _, b := range res.Balances {
				balances = append(balances, map[string]any{
					"asset":  b.Asset,
					"free":   b.Free.InexactFloat64(),
					"locked": b.Locked.InexactFloat64(),
				})
			}
			return map[string]any{"success": res.Success, "reason": res.Reason, "balances": balances}, nil
		},
		"getAllOrders": func(req map[string]any) (map[string]any, error) {
			gw, err := a.bridge.gw()
			if err != nil {
				return nil, err
			}
			query := algo.OrdersRequest{
				Symbol:    stringField(req, "symbol"),
				MessageID: intField(req, "messageId"),
			}
			if venue := stringField(req, "exchange"); venue != "" {
				query.Exchange = algo.ParseExchange(venue)
			}
			res, err := gw.GetAllOrders(a.callContext(), query)
			if err != nil {
				return a.gatewayFailure("get_all_orders", query.MessageID, err), nil
			}
			orders := make([]map[string]any, 0, len(res.Orders))
			for _, o := range res.Orders {
				orders = append(orders, orderStatusToJS(o))
			}
			return map[string]any{"success": res.Success, "reason": res.Reason, "orders": orders}, nil
		},
	}
}

func (a *Algorithm) gatewayFailure(op string, messageID int64, err error) map[string]any {
	a.bridge.log().Warn("gateway call failed",
		observability.F("operation", op),
		observability.F("message_id", messageID),
		observability.Err(err))
	return map[string]any{
		"success":   false,
		"reason":    errs.Reason(err),
		"messageId": messageID,
	}
}

func orderRequestFromJS(req map[string]any) (algo.OrderRequest, error) {
	price, err := decimalField(req, "price")
	if err != nil {
		return algo.OrderRequest{}, err
	}
	quantity, err := decimalField(req, "quantity")
	if err != nil {
		return algo.OrderRequest{}, err
	}
	return algo.OrderRequest{
		Symbol:    stringField(req, "symbol"),
		Exchange:  algo.ParseExchange(stringField(req, "exchange")),
		Side:      algo.ParseSide(stringField(req, "side")),
		Type:      algo.ParseOrderType(stringField(req, "type")),
		Price:     price,
		Quantity:  quantity,
		MessageID: intField(req, "messageId"),
		Simulated: boolPtrField(req, "simulated"),
	}, nil
}

func subscribeRequestFromJS(req map[string]any) algo.SubscribeRequest {
	depth := int(intField(req, "depthLevels"))
	if depth <= 0 {
		depth = algo.DefaultDepthLevels
	}
	return algo.SubscribeRequest{
		Symbol:           stringField(req, "symbol"),
		Exchange:         algo.ParseExchange(stringField(req, "exchange")),
		GetHistorical:    boolField(req, "getHistorical"),
		DepthLevels:      depth,
		CandlesTimeframe: algo.ParseTimeframe(stringField(req, "candlesTimeframe")),
		MessageID:        intField(req, "messageId"),
	}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func boolPtrField(m map[string]any, key string) *bool {
	b, ok := m[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// decimalField reads a price or quantity given as a number or a numeric string.
// A missing value is zero.
func decimalField(m map[string]any, key string) (decimal.Decimal, error) {
	switch v := m[key].(type) {
	case nil:
		return decimal.Zero, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%s: unsupported type %T", key, v)
	}
}

func tradesToJS(trades []algo.Trade) []map[string]any {
	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		out = append(out, map[string]any{
			"id":         t.ID,
			"symbol":     t.Symbol,
			"exchange":   string(t.Exchange),
			"side":       string(t.Side),
			"price":      t.Price.InexactFloat64(),
			"quantity":   t.Quantity.InexactFloat64(),
			"time":       t.Time.UnixMilli(),
			"historical": t.Historical,
		})
	}
	return out
}

func candlesToJS(candles []algo.Candle) []map[string]any {
	out := make([]map[string]any, 0, len(candles))
	for _, c := range candles {
		out = append(out, map[string]any{
			"id":         c.ID,
			"symbol":     c.Symbol,
			"exchange":   string(c.Exchange),
			"timeframe":  string(c.Timeframe),
			"open":       c.Open.InexactFloat64(),
			"high":       c.High.InexactFloat64(),
			"low":        c.Low.InexactFloat64(),
			"close":      c.Close.InexactFloat64(),
			"volume":     c.Volume.InexactFloat64(),
			"time":       c.Time.UnixMilli(),
			"historical": c.Historical,
		})
	}
	return out
}

func levelsToJS(levels []algo.Level) []map[string]any {
	out := make([]map[string]any, 0, len(levels))
	for _, l := range levels {
		out = append(out, map[string]any{
			"price":    l.Price.InexactFloat64(),
			"quantity": l.Quantity.InexactFloat64(),
		})
	}
	return out
}

func bookToJS(book algo.DepthOfBook) map[string]any {
	return map[string]any{
		"id":         book.ID,
		"symbol":     book.Symbol,
		"exchange":   string(book.Exchange),
		"bids":       levelsToJS(book.Bids),
		"offers":     levelsToJS(book.Offers),
		"time":       book.Time.UnixMilli(),
		"historical": book.Historical,
	}
}

func orderStatusToJS(status algo.OrderStatus) map[string]any {
	return map[string]any{
		"instanceId":     status.InstanceID,
		"messageId":      status.MessageID,
		"orderId":        status.OrderID,
		"symbol":         status.Symbol,
		"exchange":       string(status.Exchange),
		"side":           string(status.Side),
		"state":          string(status.State),
		"price":          status.Price.InexactFloat64(),
		"quantity":       status.Quantity.InexactFloat64(),
		"filledQuantity": status.FilledQuantity.InexactFloat64(),
		"reason":         status.Reason,
		"time":           status.Time.UnixMilli(),
	}
}
