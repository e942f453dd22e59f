// Package rpc exposes the host over gRPC and calls the platform back.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/app/lambda/runtime"
	"github.com/coachpo/algohost/internal/observability"
)

// Options wires the runtime components served by a Server.
type Options struct {
	Manager   *runtime.Manager
	Router    *runtime.Router
	Discovery *runtime.Discovery
	Logger    observability.Logger
	// ServerOptions are appended after the host's own interceptors.
	ServerOptions []grpc.ServerOption
}

// Server hosts algos.AlgorithmHost and the standard health service.
type Server struct {
	manager   *runtime.Manager
	router    *runtime.Router
	discovery *runtime.Discovery
	logger    observability.Logger

	grpc   *grpc.Server
	health *health.Server
}

var _ AlgorithmHostServer = (*Server)(nil)

// NewServer builds the gRPC server. Nothing listens until Serve.
func NewServer(opts Options) (*Server, error) {
	if opts.Manager == nil || opts.Router == nil || opts.Discovery == nil {
		return nil, errors.New("rpc server: manager, router and discovery are required")
	}
	s := &Server{
		manager:   opts.Manager,
		router:    opts.Router,
		discovery: opts.Discovery,
		logger:    observability.OrNop(opts.Logger),
		health:    health.NewServer(),
	}
	serverOpts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.logInterceptor),
	}, opts.ServerOptions...)
	s.grpc = grpc.NewServer(serverOpts...)
	RegisterAlgorithmHostServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HostServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, nil
}

// Serve accepts connections on lis until GracefulStop or Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("rpc server listening", observability.F("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("rpc serve: %w", err)
	}
	return nil
}

// GracefulStop marks the host not serving and drains in-flight calls. When
// ctx ends first the remaining calls are cut off.
func (s *Server) GracefulStop(ctx context.Context) error {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return fmt.Errorf("rpc graceful stop: %w", ctx.Err())
	}
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc handler panic",
				observability.F("method", info.FullMethod),
				observability.F("panic", fmt.Sprint(r)),
				observability.F("stack", string(debug.Stack())))
			resp, err = nil, status.Errorf(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []observability.Field{
		observability.F("method", info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]),
		observability.F("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("rpc call failed", append(fields, observability.Err(err))...)
	} else {
		s.logger.Debug("rpc call", fields...)
	}
	return resp, err
}

func result(err error) *Result {
	if err != nil {
		return &Result{Success: false, Reason: errs.Reason(err)}
	}
	return &Result{Success: true}
}

// InitializeAlgorithm implements AlgorithmHostServer.
func (s *Server) InitializeAlgorithm(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	ready, err := s.manager.Initialize(ctx, req.InstanceID, req.Name)
	if err != nil {
		return &InitializeResponse{Success: false, Reason: errs.Reason(err)}, nil
	}
	return &InitializeResponse{
		Success:           true,
		ListenTrades:      ready.Interests.Trades,
		ListenCandles:     ready.Interests.Candles,
		ListenDepthOfBook: ready.Interests.DepthOfBook,
		ListenOrderStatus: ready.Interests.OrderStatus,
		HasConfigPanel:    ready.HasConfigPanel,
		ConfigSchema:      ready.ConfigSchema,
	}, nil
}

// StartAlgorithm implements AlgorithmHostServer.
func (s *Server) StartAlgorithm(ctx context.Context, req *StartRequest) (*Result, error) {
	return result(s.manager.Start(ctx, req.InstanceID, req.ConfigJSON)), nil
}

// PauseAlgorithm implements AlgorithmHostServer.
func (s *Server) PauseAlgorithm(ctx context.Context, req *InstanceRequest) (*Result, error) {
	return result(s.manager.Pause(ctx, req.InstanceID)), nil
}

// ResumeAlgorithm implements AlgorithmHostServer.
func (s *Server) ResumeAlgorithm(ctx context.Context, req *InstanceRequest) (*Result, error) {
	return result(s.manager.Resume(ctx, req.InstanceID)), nil
}

// StopAlgorithm implements AlgorithmHostServer.
func (s *Server) StopAlgorithm(ctx context.Context, req *InstanceRequest) (*Result, error) {
	return result(s.manager.Stop(ctx, req.InstanceID)), nil
}

// TradeEvent implements AlgorithmHostServer.
func (s *Server) TradeEvent(ctx context.Context, req *Trade) (*EventAck, error) {
	ack := s.router.DispatchTrade(ctx, TradeToDomain(req))
	return &EventAck{ID: ack.ID}, nil
}

// CandleEvent implements AlgorithmHostServer.
func (s *Server) CandleEvent(ctx context.Context, req *Candle) (*EventAck, error) {
	ack := s.router.DispatchCandle(ctx, CandleToDomain(req))
	return &EventAck{ID: ack.ID}, nil
}

// DepthOfBookEvent implements AlgorithmHostServer.
func (s *Server) DepthOfBookEvent(ctx context.Context, req *DepthOfBook) (*EventAck, error) {
	ack := s.router.DispatchDepthOfBook(ctx, DepthOfBookToDomain(req))
	return &EventAck{ID: ack.ID}, nil
}

// OrderStatusEvent implements AlgorithmHostServer.
func (s *Server) OrderStatusEvent(ctx context.Context, req *OrderStatus) (*OrderStatusAck, error) {
	ack := s.router.DispatchOrderStatus(ctx, OrderStatusToDomain(req))
	return &OrderStatusAck{InstanceID: ack.InstanceID, MessageID: ack.MessageID}, nil
}

// ListAvailableAlgorithms implements AlgorithmHostServer.
func (s *Server) ListAvailableAlgorithms(ctx context.Context, req *ListRequest) (*ListAvailableResponse, error) {
	descriptors := s.discovery.ListAvailable(ctx, req.NameFilter)
	out := &ListAvailableResponse{Success: true, Algorithms: make([]AlgorithmInfo, 0, len(descriptors))}
	for _, d := range descriptors {
		out.Algorithms = append(out.Algorithms, algorithmInfo(d))
	}
	return out, nil
}

// ListRunningAlgorithms implements AlgorithmHostServer.
func (s *Server) ListRunningAlgorithms(ctx context.Context, req *ListRequest) (*ListRunningResponse, error) {
	snapshots := s.discovery.ListRunning(ctx, req.NameFilter)
	out := &ListRunningResponse{Success: true, Algorithms: make([]RunningAlgorithm, 0, len(snapshots))}
	for _, snap := range snapshots {
		out.Algorithms = append(out.Algorithms, runningAlgorithm(snap))
	}
	return out, nil
}
