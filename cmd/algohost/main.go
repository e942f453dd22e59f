// Command algohost launches the algorithm hosting runtime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/algohost/internal/app/gateway"
	"github.com/coachpo/algohost/internal/app/lambda/js"
	"github.com/coachpo/algohost/internal/app/lambda/runtime"
	"github.com/coachpo/algohost/internal/app/lambda/strategies"
	"github.com/coachpo/algohost/internal/app/registry"
	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/infra/config"
	"github.com/coachpo/algohost/internal/infra/persistence"
	"github.com/coachpo/algohost/internal/infra/persistence/memory"
	"github.com/coachpo/algohost/internal/infra/persistence/migrations"
	"github.com/coachpo/algohost/internal/infra/persistence/postgres"
	"github.com/coachpo/algohost/internal/infra/rpc"
	httpserver "github.com/coachpo/algohost/internal/infra/server/http"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
)

const (
	defaultConfigPath        = "config/algohost.yaml"
	shutdownTimeout          = 30 * time.Second
	rpcServerShutdownTimeout = 10 * time.Second
	opsShutdownTimeout       = 5 * time.Second
	instancesShutdownTimeout = 10 * time.Second
	lifecycleShutdownTimeout = 5 * time.Second
	clientShutdownTimeout    = 2 * time.Second
	journalShutdownTimeout   = 2 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	opsReadHeaderTimeout     = 5 * time.Second
	journalStartupTimeout    = 30 * time.Second
)

type cliFlags struct {
	configPath string
	serverAddr string
	clientAddr string
}

func main() {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	bootstrap := observability.NewLogger(observability.LogOptions{Level: "info", Console: true})
	if err := config.LoadDotEnv(); err != nil {
		bootstrap.Error("load .env", observability.Err(err))
		os.Exit(1)
	}

	appCfg, loadedFromFile, err := config.LoadOrDefault(ctx, resolveConfigPath(flags.configPath))
	if err != nil {
		bootstrap.Error("load config", observability.Err(err))
		os.Exit(1)
	}
	appCfg = applyFlags(appCfg, flags)

	logger := observability.NewLogger(observability.LogOptions{
		Level:   appCfg.Logging.Level,
		Console: appCfg.Logging.Console,
	}).With(observability.F("service", appCfg.Telemetry.ServiceName))
	observability.SetLogger(logger)

	if !loadedFromFile {
		logger.Info("configuration file not found, using defaults")
	}
	logger.Info("configuration initialised",
		observability.F("env", string(appCfg.Environment)),
		observability.F("server", appCfg.Server.Addr),
		observability.F("platform", appCfg.Platform.Addr))

	if err := run(ctx, cancel, appCfg, logger); err != nil {
		logger.Error("algohost terminated", observability.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, appCfg config.AppConfig, logger observability.Logger) error {
	telemetryProvider, err := initTelemetry(ctx, logger, appCfg.Environment, appCfg.Telemetry)
	if err != nil {
		return err
	}

	limits, err := appCfg.Gateway.Limits()
	if err != nil {
		return fmt.Errorf("gateway limits: %w", err)
	}

	reg, err := buildRegistry(ctx, appCfg.Plugins, logger)
	if err != nil {
		return err
	}

	journalStore, db, err := openJournal(ctx, appCfg.Journal, logger)
	if err != nil {
		return err
	}

	platform, client, err := dialPlatform(appCfg.Platform, logger)
	if err != nil {
		db.Close()
		return err
	}

	gateways := gateway.NewFactory(gateway.Options{
		Platform:  platform,
		Recorder:  journalStore,
		Limits:    limits,
		Simulated: appCfg.Platform.Simulated,
		Logger:    logger,
	})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hookMetrics := runtime.NewHookMetrics(promRegistry)

	table := runtime.NewTable()
	manager := runtime.NewManager(reg, table, runtime.Options{
		Logger:   logger,
		Metrics:  hookMetrics,
		Gateways: gateways,
	})
	router := runtime.NewRouter(table, runtime.RouterOptions{
		Logger:        logger,
		Metrics:       hookMetrics,
		FanoutWorkers: appCfg.Dispatch.FanoutWorkers.Workers(),
	})
	discovery := runtime.NewDiscovery(reg, table, logger)

	server, err := rpc.NewServer(rpc.Options{
		Manager:   manager,
		Router:    router,
		Discovery: discovery,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", appCfg.Server.Addr, err)
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := server.Serve(lis); err != nil {
			logger.Error("rpc server", observability.Err(err))
			cancel()
		}
	})
	logger.Info("algorithm host listening", observability.F("addr", lis.Addr().String()))

	opsServer := startOpsServer(&lifecycle, logger, appCfg.Server.MetricsAddr, httpserver.Options{
		Discovery: discovery,
		Journal:   journalStore,
		Gatherer:  promRegistry,
		Logger:    logger,
	})

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:     server,
		ops:        opsServer,
		manager:    manager,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		client:     client,
		db:         db,
		telemetry:  telemetryProvider,
	})
	logger.Info("shutdown completed", observability.F("elapsed", time.Since(shutdownStart).String()))
	return nil
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.StringVar(&f.serverAddr, "server", "", "Address the algorithm host listens on (overrides server.addr)")
	flag.StringVar(&f.clientAddr, "client", "", "Address of the platform RPC endpoint (overrides platform.addr)")
	flag.Parse()
	return f
}

func applyFlags(cfg config.AppConfig, f cliFlags) config.AppConfig {
	if f.serverAddr != "" {
		cfg.Server.Addr = f.serverAddr
	}
	if f.clientAddr != "" {
		cfg.Platform.Addr = f.clientAddr
	}
	return cfg
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func initTelemetry(ctx context.Context, logger observability.Logger, env config.Environment, cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
		telemetryCfg.Enabled = true
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(env)
	telemetryCfg.OTLPInsecure = telemetryCfg.OTLPInsecure || cfg.OTLPInsecure
	telemetryCfg.EnableMetrics = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if provider.Enabled() {
		logger.Info("telemetry initialized",
			observability.F("endpoint", telemetryCfg.OTLPEndpoint),
			observability.F("service", telemetryCfg.ServiceName))
	} else {
		logger.Info("telemetry disabled")
	}
	return provider, nil
}

// buildRegistry registers the compiled-in algorithms and, when a scripts
// directory is configured, the JavaScript modules found there.
func buildRegistry(ctx context.Context, cfg config.PluginsConfig, logger observability.Logger) (*registry.Registry, error) {
	reg := registry.New()
	if err := strategies.Register(reg); err != nil {
		return nil, fmt.Errorf("register bundled algorithms: %w", err)
	}
	if cfg.ScriptsDir == "" {
		return reg, nil
	}
	loader, err := js.NewLoader(cfg.ScriptsDir, logger)
	if err != nil {
		return nil, err
	}
	if err := loader.Refresh(ctx); err != nil {
		return nil, err
	}
	reg.AddSource(loader)
	return reg, nil
}

// openJournal returns the postgres journal when enabled and the in-memory
// ring otherwise. The returned store is nil for the ring.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger observability.Logger) (journal.Store, *persistence.Store, error) {
	if !cfg.Enabled {
		logger.Info("journal kept in memory", observability.F("capacity", cfg.RingSize))
		return memory.NewJournalStore(cfg.RingSize), nil, nil
	}

	startCtx, cancel := context.WithTimeout(ctx, journalStartupTimeout)
	defer cancel()

	if cfg.RunMigrations {
		if err := migrations.Apply(startCtx, cfg.DSN, migrations.Embedded, logger); err != nil {
			return nil, nil, err
		}
	}
	db, err := persistence.Open(startCtx, cfg.DSN, persistence.PoolOptions{
		MaxConns:          cfg.MaxConns,
		MinConns:          cfg.MinConns,
		MaxConnLifetime:   cfg.MaxConnLifetime,
		MaxConnIdleTime:   cfg.MaxConnIdleTime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := postgres.ObservePoolMetrics(db.Pool(), "journal"); err != nil {
		logger.Warn("journal pool metrics unavailable", observability.Err(err))
	}
	logger.Info("journal persisted to postgres")
	return postgres.New(db.Pool()).Journal, db, nil
}

// dialPlatform returns the outbound platform. An empty address leaves the
// gateway offline.
func dialPlatform(cfg config.PlatformConfig, logger observability.Logger) (gateway.Platform, *rpc.PlatformClient, error) {
	if cfg.Addr == "" {
		logger.Warn("no platform address configured, outbound calls will fail")
		return nil, nil, nil
	}
	client, err := rpc.DialPlatform(cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial platform %s: %w", cfg.Addr, err)
	}
	logger.Info("platform client ready", observability.F("addr", cfg.Addr))
	return client, client, nil
}

// startOpsServer serves metrics, health, catalogue and journal queries.
func startOpsServer(lifecycle *conc.WaitGroup, logger observability.Logger, addr string, opts httpserver.Options) *http.Server {
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewHandler(opts),
		ReadHeaderTimeout: opsReadHeaderTimeout,
	}
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server", observability.Err(err))
		}
	})
	logger.Info("ops endpoint listening", observability.F("addr", addr))
	return server
}

type gracefulShutdownConfig struct {
	server     *rpc.Server
	ops        *http.Server
	manager    *runtime.Manager
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	client     *rpc.PlatformClient
	db         *persistence.Store
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger observability.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Info("shutdown: " + name)
		if err := fn(stepCtx); err != nil {
			logger.Warn("shutdown: "+name+" failed", observability.Err(err))
		} else {
			logger.Info("shutdown: " + name + " completed")
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping rpc server", rpcServerShutdownTimeout, cfg.server.GracefulStop)
	}
	if cfg.ops != nil {
		shutdownStep("stopping ops server", opsShutdownTimeout, cfg.ops.Shutdown)
	}
	if cfg.manager != nil {
		shutdownStep("stopping algorithm instances", instancesShutdownTimeout, cfg.manager.StopAll)
	}

	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.client != nil {
		shutdownStep("closing platform client", clientShutdownTimeout, func(context.Context) error {
			return cfg.client.Close()
		})
	}
	if cfg.db != nil {
		shutdownStep("closing journal database", journalShutdownTimeout, func(context.Context) error {
			cfg.db.Close()
			return nil
		})
	}
	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, cfg.telemetry.Shutdown)
	}
}
