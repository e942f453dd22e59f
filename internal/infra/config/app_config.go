// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/algohost/internal/risk"
)

const (
	defaultServerAddr   = "localhost:5050"
	defaultPlatformAddr = "localhost:5051"
	defaultMetricsAddr  = ":9464"
	defaultScriptsDir   = "algorithms"
	defaultServiceName  = "algohost"
	defaultFanout       = 16
	defaultJournalRing  = 4096
)

// ServerConfig configures the inbound gRPC listener and the metrics endpoint.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// PlatformConfig locates the platform the gateway calls back into. An empty
// Addr runs the host without a platform; gateway calls then fail as unavailable.
type PlatformConfig struct {
	Addr      string `yaml:"addr"`
	Simulated bool   `yaml:"simulated"`
}

// PluginsConfig defines where JavaScript algorithm modules are discovered.
type PluginsConfig struct {
	ScriptsDir string `yaml:"scriptsDir"`
}

type fanoutWorkerKind int

const (
	fanoutWorkerUnset fanoutWorkerKind = iota
	fanoutWorkerExplicit
	fanoutWorkerAuto
)

// FanoutWorkerSetting accepts either a positive integer or "auto".
type FanoutWorkerSetting struct {
	kind  fanoutWorkerKind
	value int
}

// UnmarshalYAML supports integer, "auto", and "default" values for fanout workers.
func (s *FanoutWorkerSetting) UnmarshalYAML(node *yaml.Node) error {
	text := ""
	if node != nil {
		text = strings.TrimSpace(node.Value)
	}
	switch strings.ToLower(text) {
	case "", "default":
		*s = FanoutWorkerSetting{}
		return nil
	case "auto":
		*s = FanoutWorkerSetting{kind: fanoutWorkerAuto}
		return nil
	}
	val, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("fanoutWorkers: invalid value %q", node.Value)
	}
	if val <= 0 {
		return fmt.Errorf("fanoutWorkers: numeric value must be > 0")
	}
	*s = FanoutWorkerSetting{kind: fanoutWorkerExplicit, value: val}
	return nil
}

// Workers returns the effective concurrent deliveries per broadcast.
func (s FanoutWorkerSetting) Workers() int {
	switch s.kind {
	case fanoutWorkerExplicit:
		return s.value
	case fanoutWorkerAuto:
		if cores := runtime.NumCPU(); cores > 0 {
			return cores
		}
		return defaultFanout
	default:
		return defaultFanout
	}
}

// DispatchConfig sizes event fan-out.
type DispatchConfig struct {
	FanoutWorkers FanoutWorkerSetting `yaml:"fanoutWorkers"`
}

// GatewayConfig holds the per-instance order guard. Decimal limits are strings
// so YAML floats never round them.
type GatewayConfig struct {
	MaxOrderQuantity string  `yaml:"maxOrderQuantity"`
	MaxOrderNotional string  `yaml:"maxOrderNotional"`
	OrderThrottle    float64 `yaml:"orderThrottle"`
	OrderBurst       int     `yaml:"orderBurst"`
}

// Limits converts the section into risk limits.
func (c GatewayConfig) Limits() (risk.Limits, error) {
	limits := risk.Limits{OrderThrottle: c.OrderThrottle, OrderBurst: c.OrderBurst}
	var err error
	if limits.MaxOrderQuantity, err = optionalDecimal(c.MaxOrderQuantity); err != nil {
		return risk.Limits{}, fmt.Errorf("maxOrderQuantity: %w", err)
	}
	if limits.MaxOrderNotional, err = optionalDecimal(c.MaxOrderNotional); err != nil {
		return risk.Limits{}, fmt.Errorf("maxOrderNotional: %w", err)
	}
	return limits, nil
}

func optionalDecimal(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("must be >= 0")
	}
	return value, nil
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// JournalConfig controls the outbound call journal. When disabled the host
// keeps a bounded in-memory ring.
type JournalConfig struct {
	Enabled           bool          `yaml:"enabled"`
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	RunMigrations     bool          `yaml:"runMigrations"`
	RingSize          int           `yaml:"ringSize"`
}

func (c *JournalConfig) applyDefaults() {
	c.DSN = strings.TrimSpace(c.DSN)
	if c.DSN == "" {
		c.DSN = "postgresql://localhost:5432/algohost"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 8
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
	if c.RingSize <= 0 {
		c.RingSize = defaultJournalRing
	}
}

func (c JournalConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("maxConns must be >0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("minConns must be <= maxConns")
	}
	return nil
}

// LoggingConfig selects the log level and renderer.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// AppConfig is the unified host configuration sourced from YAML, .env files
// and ALGOHOST_* environment variables.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Platform    PlatformConfig  `yaml:"platform"`
	Plugins     PluginsConfig   `yaml:"plugins"`
	Dispatch    DispatchConfig  `yaml:"dispatch"`
	Gateway     GatewayConfig   `yaml:"gateway"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Journal     JournalConfig   `yaml:"journal"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	cfg := AppConfig{
		Environment: EnvDev,
		Server:      ServerConfig{Addr: defaultServerAddr, MetricsAddr: defaultMetricsAddr},
		Platform:    PlatformConfig{Addr: defaultPlatformAddr, Simulated: true},
		Plugins:     PluginsConfig{ScriptsDir: defaultScriptsDir},
		Gateway:     GatewayConfig{OrderThrottle: 10, OrderBurst: 5},
		Telemetry:   TelemetryConfig{ServiceName: defaultServiceName, EnableMetrics: true},
		Logging:     LoggingConfig{Level: "info", Console: true},
	}
	_ = cfg.normalise()
	return cfg
}

// Load reads, overrides from the environment, and validates an AppConfig
// from the YAML file at configPath.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. The boolean reports whether the file was read.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, false, err
	}
	cfg, err = finish(Default())
	return cfg, false, err
}

func finish(cfg AppConfig) (AppConfig, error) {
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() error {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	switch c.Environment {
	case "":
		c.Environment = EnvDev
	case "development":
		c.Environment = EnvDev
	case "production":
		c.Environment = EnvProd
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.MetricsAddr = strings.TrimSpace(c.Server.MetricsAddr)
	c.Platform.Addr = strings.TrimSpace(c.Platform.Addr)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	scriptsDir := strings.TrimSpace(c.Plugins.ScriptsDir)
	if scriptsDir != "" {
		scriptsDir = filepath.Clean(scriptsDir)
	}
	c.Plugins.ScriptsDir = scriptsDir

	if c.Gateway.OrderThrottle > 0 && c.Gateway.OrderBurst <= 0 {
		c.Gateway.OrderBurst = 1
	}

	c.Journal.applyDefaults()
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr required")
	}
	if c.Dispatch.FanoutWorkers.Workers() <= 0 {
		return fmt.Errorf("dispatch fanoutWorkers must be >0")
	}
	if c.Gateway.OrderThrottle < 0 {
		return fmt.Errorf("gateway orderThrottle must be >= 0")
	}
	if _, err := c.Gateway.Limits(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Journal.validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := filepath.Clean(strings.TrimSpace(path))

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
