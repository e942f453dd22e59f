package rpc

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/coachpo/algohost/internal/app/lambda/runtime"
	"github.com/coachpo/algohost/internal/domain/algo"
)

func fromTimestamp(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}

func toTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

// eventID keeps the platform's id, or assigns one so every ack carries an id.
func eventID(id string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}

// TradeToDomain converts a wire trade.
func TradeToDomain(t *Trade) algo.Trade {
	return algo.Trade{
		ID:         eventID(t.ID),
		Symbol:     t.Symbol,
		Exchange:   algo.ParseExchange(t.Exchange),
		Side:       algo.ParseSide(t.Side),
		Price:      t.Price,
		Quantity:   t.Quantity,
		Time:       fromTimestamp(t.Timestamp),
		Historical: t.Historical,
	}
}

// CandleToDomain converts a wire candle.
func CandleToDomain(c *Candle) algo.Candle {
	return algo.Candle{
		ID:         eventID(c.ID),
		Symbol:     c.Symbol,
		Exchange:   algo.ParseExchange(c.Exchange),
		Timeframe:  algo.ParseTimeframe(c.Timeframe),
		Open:       c.Open,
		High:       c.High,
		Low:        c.Low,
		Close:      c.Close,
		Volume:     c.Volume,
		Time:       fromTimestamp(c.Timestamp),
		Historical: c.Historical,
	}
}

func levelsToDomain(levels []Level) []algo.Level {
	out := make([]algo.Level, len(levels))
	for i, l := range levels {
		out[i] = algo.Level{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

// DepthOfBookToDomain converts a wire book.
func DepthOfBookToDomain(b *DepthOfBook) algo.DepthOfBook {
	return algo.DepthOfBook{
		ID:         eventID(b.ID),
		Symbol:     b.Symbol,
		Exchange:   algo.ParseExchange(b.Exchange),
		Bids:       levelsToDomain(b.Bids),
		Offers:     levelsToDomain(b.Offers),
		Time:       fromTimestamp(b.Timestamp),
		Historical: b.Historical,
	}
}

// OrderStatusToDomain converts a wire order update.
func OrderStatusToDomain(s *OrderStatus) algo.OrderStatus {
	return algo.OrderStatus{
		InstanceID:     s.InstanceID,
		MessageID:      s.MessageID,
		OrderID:        s.OrderID,
		Symbol:         s.Symbol,
		Exchange:       algo.ParseExchange(s.Exchange),
		Side:           algo.ParseSide(s.Side),
		State:          algo.ParseOrderState(s.State),
		Price:          s.Price,
		Quantity:       s.Quantity,
		FilledQuantity: s.FilledQuantity,
		Reason:         s.Reason,
		Time:           fromTimestamp(s.Timestamp),
	}
}

// OrderStatusFromDomain converts a domain order update to its wire form.
func OrderStatusFromDomain(s algo.OrderStatus) OrderStatus {
	return OrderStatus{
		InstanceID:     s.InstanceID,
		MessageID:      s.MessageID,
		OrderID:        s.OrderID,
		Symbol:         s.Symbol,
		Exchange:       string(s.Exchange),
		Side:           string(s.Side),
		State:          string(s.State),
		Price:          s.Price,
		Quantity:       s.Quantity,
		FilledQuantity: s.FilledQuantity,
		Reason:         s.Reason,
		Timestamp:      toTimestamp(s.Time),
	}
}

func algorithmInfo(d algo.Descriptor) AlgorithmInfo {
	return AlgorithmInfo{
		Name:              d.Name,
		DisplayName:       d.DisplayName,
		Description:       d.Description,
		Version:           d.Version,
		Author:            d.Author,
		Tags:              d.Tags,
		HasConfigPanel:    d.HasConfigPanel(),
		ConfigSchema:      d.ConfigSchema,
		ListenTrades:      d.Interests.Trades,
		ListenCandles:     d.Interests.Candles,
		ListenDepthOfBook: d.Interests.DepthOfBook,
		ListenOrderStatus: d.Interests.OrderStatus,
	}
}

func runningAlgorithm(s runtime.Snapshot) RunningAlgorithm {
	return RunningAlgorithm{
		AlgorithmInfo: algorithmInfo(s.Descriptor),
		InstanceID:    s.InstanceID,
		State:         s.State.String(),
		ConfigJSON:    s.Config.JSON(),
		CreatedAt:     toTimestamp(s.CreatedAt),
	}
}

func ordersToDomain(orders []OrderStatus) []algo.OrderStatus {
	out := make([]algo.OrderStatus, len(orders))
	for i := range orders {
		out[i] = OrderStatusToDomain(&orders[i])
	}
	return out
}

func balancesToDomain(balances []Balance) []algo.Balance {
	out := make([]algo.Balance, len(balances))
	for i, b := range balances {
		out[i] = algo.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked}
	}
	return out
}
