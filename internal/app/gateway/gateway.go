// Package gateway implements the per-instance callback facade algorithms use
// to reach the trading platform.
package gateway

import (
	"context"
	"math/rand/v2"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
	"github.com/coachpo/algohost/internal/risk"
)

// Platform is the outbound RPC surface of the trading platform. Every call is
// attributed to instanceID.
type Platform interface {
	SendOrder(ctx context.Context, instanceID string, req algo.OrderRequest) (algo.OrderResult, error)
	CancelOrder(ctx context.Context, instanceID string, req algo.CancelRequest) (algo.CancelResult, error)
	SubscribeSymbol(ctx context.Context, instanceID string, req algo.SubscribeRequest) (algo.SubscribeResult, error)
	GetOrderStatus(ctx context.Context, instanceID string, req algo.OrderStatusRequest) (algo.OrderStatusResult, error)
	GetAccountBalance(ctx context.Context, instanceID string, req algo.BalanceRequest) (algo.BalanceResult, error)
	GetAllOrders(ctx context.Context, instanceID string, req algo.OrdersRequest) (algo.OrdersResult, error)
}

// Gateway is the callback facade bound to one instance.
type Gateway struct {
	instanceID string
	platform   Platform
	guard      *risk.Manager
	recorder   journal.Recorder
	simulated  bool
	paused     func() bool
	logger     observability.Logger
	metrics    callMetrics
	now        func() time.Time
}

var _ algo.Gateway = (*Gateway)(nil)

// InstanceID implements algo.Gateway.
func (g *Gateway) InstanceID() string { return g.instanceID }

// NewMessageID derives a message id from the current time plus a random
// suffix so bursts of calls within one microsecond stay distinct.
func NewMessageID(now time.Time) int64 {
	return now.UnixMicro()*1000 + rand.Int64N(1000)
}

func (g *Gateway) messageID(explicit int64) int64 {
	if explicit != 0 {
		return explicit
	}
	return NewMessageID(g.now())
}

func (g *Gateway) simulatedFlag(explicit *bool) *bool {
	if explicit != nil {
		return explicit
	}
	value := g.simulated
	return &value
}

// SendOrder implements algo.Gateway. Orders are refused while the instance is
// paused or when the risk guard rejects them.
func (g *Gateway) SendOrder(ctx context.Context, req algo.OrderRequest) (algo.OrderResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()
	req.Simulated = g.simulatedFlag(req.Simulated)

	if g.paused != nil && g.paused() {
		err := errs.New(string(journal.OpSendOrder), errs.CodePaused, errs.WithInstance(g.instanceID),
			errs.WithMessage("instance is paused"))
		g.finish(ctx, journal.OpSendOrder, start, req.MessageID, req, false, err)
		return algo.OrderResult{Reason: errs.Reason(err), MessageID: req.MessageID}, err
	}
	if err := g.guard.CheckOrder(ctx, g.instanceID, req); err != nil {
		g.finish(ctx, journal.OpSendOrder, start, req.MessageID, req, false, err)
		return algo.OrderResult{Reason: errs.Reason(err), MessageID: req.MessageID}, err
	}

	res, err := g.platform.SendOrder(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpSendOrder, err)
		res = algo.OrderResult{Reason: errs.Reason(err)}
	}
	if res.MessageID == 0 {
		res.MessageID = req.MessageID
	}
	g.finish(ctx, journal.OpSendOrder, start, req.MessageID, req, res.Success, err)
	return res, err
}

// CancelOrder implements algo.Gateway.
func (g *Gateway) CancelOrder(ctx context.Context, req algo.CancelRequest) (algo.CancelResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()
	req.Simulated = g.simulatedFlag(req.Simulated)

	res, err := g.platform.CancelOrder(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpCancelOrder, err)
		res = algo.CancelResult{Reason: errs.Reason(err)}
	}
	if res.MessageID == 0 {
		res.MessageID = req.MessageID
	}
	g.finish(ctx, journal.OpCancelOrder, start, req.MessageID, req, res.Success, err)
	return res, err
}

// SubscribeSymbol implements algo.Gateway.
func (g *Gateway) SubscribeSymbol(ctx context.Context, req algo.SubscribeRequest) (algo.SubscribeResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()
	if req.DepthLevels <= 0 {
		req.DepthLevels = algo.DefaultDepthLevels
	}

	res, err := g.platform.SubscribeSymbol(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpSubscribeSymbol, err)
		res = algo.SubscribeResult{Reason: errs.Reason(err)}
	}
	g.finish(ctx, journal.OpSubscribeSymbol, start, req.MessageID, req, res.Success, err)
	return res, err
}

// SubscribeSymbolAsync implements algo.Gateway. The subscription outlives the
// caller's context; the channel receives nil on success and is then closed.
func (g *Gateway) SubscribeSymbolAsync(ctx context.Context, req algo.SubscribeRequest) <-chan error {
	done := make(chan error, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		res, err := g.SubscribeSymbol(detached, req)
		if err == nil && !res.Success {
			err = errs.New(string(journal.OpSubscribeSymbol), errs.CodeTransport, errs.WithInstance(g.instanceID),
				errs.WithMessage("subscription rejected: "+res.Reason))
		}
		if err != nil {
			g.logger.Warn("background subscription failed",
				observability.F("symbol", req.Symbol),
				observability.F("exchange", req.Exchange),
				observability.Err(err))
		}
		done <- err
	}()
	return done
}

// GetOrderStatus implements algo.Gateway.
func (g *Gateway) GetOrderStatus(ctx context.Context, req algo.OrderStatusRequest) (algo.OrderStatusResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()

	res, err := g.platform.GetOrderStatus(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpGetOrderStatus, err)
		res = algo.OrderStatusResult{Reason: errs.Reason(err)}
	}
	g.finish(ctx, journal.OpGetOrderStatus, start, req.MessageID, req, res.Success, err)
	return res, err
}

// GetAccountBalance implements algo.Gateway.
func (g *Gateway) GetAccountBalance(ctx context.Context, req algo.BalanceRequest) (algo.BalanceResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()

	res, err := g.platform.GetAccountBalance(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpGetAccountBalance, err)
		res = algo.BalanceResult{Reason: errs.Reason(err)}
	}
	g.finish(ctx, journal.OpGetAccountBalance, start, req.MessageID, req, res.Success, err)
	return res, err
}

// GetAllOrders implements algo.Gateway.
func (g *Gateway) GetAllOrders(ctx context.Context, req algo.OrdersRequest) (algo.OrdersResult, error) {
	req.MessageID = g.messageID(req.MessageID)
	start := g.now()

	res, err := g.platform.GetAllOrders(ctx, g.instanceID, req)
	if err != nil {
		err = g.transportError(journal.OpGetAllOrders, err)
		res = algo.OrdersResult{Reason: errs.Reason(err)}
	}
	g.finish(ctx, journal.OpGetAllOrders, start, req.MessageID, req, res.Success, err)
	return res, err
}

// transportError keeps envelopes produced by the platform client and wraps
// anything else as a transport failure.
func (g *Gateway) transportError(op journal.Operation, err error) error {
	if errs.CodeOf(err) != "" {
		return err
	}
	return errs.New(string(op), errs.CodeTransport, errs.WithInstance(g.instanceID),
		errs.WithMessage("platform call failed"), errs.WithCause(err))
}

func (g *Gateway) finish(ctx context.Context, op journal.Operation, start time.Time, messageID int64, req any, success bool, callErr error) {
	result := telemetry.ResultSuccess
	switch {
	case callErr != nil:
		result = string(errs.CodeOf(callErr))
	case !success:
		result = telemetry.ResultRejected
	}
	attrs := metric.WithAttributes(telemetry.OperationAttributes(string(op), result)...)
	if g.metrics.calls != nil {
		g.metrics.calls.Add(context.WithoutCancel(ctx), 1, attrs)
	}
	if g.metrics.duration != nil {
		elapsed := float64(g.now().Sub(start).Microseconds()) / 1000
		g.metrics.duration.Record(context.WithoutCancel(ctx), elapsed, attrs)
	}
	if callErr != nil {
		g.logger.Debug("gateway call failed",
			observability.F("operation", string(op)),
			observability.F("message_id", messageID),
			observability.Err(callErr))
	}

	if g.recorder == nil {
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		payload = nil
	}
	entry := journal.Entry{
		InstanceID: g.instanceID,
		MessageID:  messageID,
		Operation:  op,
		Request:    payload,
		Success:    success && callErr == nil,
		Error:      errs.Reason(callErr),
		RecordedAt: g.now().UTC(),
	}
	if err := g.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Warn("journal record failed",
			observability.F("operation", string(op)),
			observability.Err(err))
	}
}
