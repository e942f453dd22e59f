package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "algohost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	cfg, loaded, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, defaultServerAddr, cfg.Server.Addr)
	require.Equal(t, defaultPlatformAddr, cfg.Platform.Addr)
	require.Equal(t, defaultFanout, cfg.Dispatch.FanoutWorkers.Workers())
	require.False(t, cfg.Journal.Enabled)
	require.Equal(t, defaultJournalRing, cfg.Journal.RingSize)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
environment: STAGING
server:
  addr: " 0.0.0.0:7000 "
  metricsAddr: ":9100"
platform:
  addr: platform:5051
  simulated: false
plugins:
  scriptsDir: ./scripts/../algos
dispatch:
  fanoutWorkers: 3
gateway:
  maxOrderQuantity: "2.5"
  maxOrderNotional: "10000"
  orderThrottle: 4
telemetry:
  serviceName: host-test
journal:
  enabled: true
  dsn: postgres://u:p@db:5432/algohost
  maxConns: 4
  maxConnLifetime: 10m
logging:
  level: DEBUG
`)
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvStaging, cfg.Environment)
	require.Equal(t, "0.0.0.0:7000", cfg.Server.Addr)
	require.Equal(t, "platform:5051", cfg.Platform.Addr)
	require.False(t, cfg.Platform.Simulated)
	require.Equal(t, "algos", cfg.Plugins.ScriptsDir)
	require.Equal(t, 3, cfg.Dispatch.FanoutWorkers.Workers())
	require.Equal(t, 5, cfg.Gateway.OrderBurst)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, int32(4), cfg.Journal.MaxConns)
	require.Equal(t, 10*time.Minute, cfg.Journal.MaxConnLifetime)
	require.Equal(t, 5*time.Minute, cfg.Journal.MaxConnIdleTime)

	limits, err := cfg.Gateway.Limits()
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("2.5").Equal(limits.MaxOrderQuantity))
	require.True(t, decimal.NewFromInt(10000).Equal(limits.MaxOrderNotional))
	require.Equal(t, 4.0, limits.OrderThrottle)
}

func TestFanoutWorkersAuto(t *testing.T) {
	path := writeConfig(t, "dispatch:\n  fanoutWorkers: auto\n")
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, runtime.NumCPU(), cfg.Dispatch.FanoutWorkers.Workers())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"environment":    "environment: qa\n",
		"fanout":         "dispatch:\n  fanoutWorkers: -2\n",
		"fanout text":    "dispatch:\n  fanoutWorkers: lots\n",
		"decimal":        "gateway:\n  maxOrderQuantity: abc\n",
		"negative limit": "gateway:\n  maxOrderNotional: \"-1\"\n",
		"throttle":       "gateway:\n  orderThrottle: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ALGOHOST_SERVER_ADDR", "127.0.0.1:6000")
	t.Setenv("ALGOHOST_PLATFORM_ADDR", "")
	t.Setenv("ALGOHOST_JOURNAL_ENABLED", "true")
	t.Setenv("ALGOHOST_JOURNAL_DSN", "postgres://env/algohost")
	t.Setenv("ALGOHOST_ENV", "production")

	cfg, err := Load(context.Background(), writeConfig(t, "server:\n  addr: localhost:1\n"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6000", cfg.Server.Addr)
	require.Empty(t, cfg.Platform.Addr)
	require.True(t, cfg.Journal.Enabled)
	require.Equal(t, "postgres://env/algohost", cfg.Journal.DSN)
	require.Equal(t, EnvProd, cfg.Environment)
}

func TestEnvironmentOverrideRejectsBadBool(t *testing.T) {
	t.Setenv("ALGOHOST_SIMULATED", "perhaps")
	_, err := Load(context.Background(), writeConfig(t, "{}\n"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALGOHOST_SCRIPTS_DIR=from-dotenv\n"), 0o600))
	t.Setenv("ALGOHOST_SCRIPTS_DIR", "")
	require.NoError(t, os.Unsetenv("ALGOHOST_SCRIPTS_DIR"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "from-dotenv", os.Getenv("ALGOHOST_SCRIPTS_DIR"))
}

func TestThrottleWithoutBurstDefaultsToOne(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "gateway:\n  orderThrottle: 2\n  orderBurst: 0\n"))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Gateway.OrderBurst)
}
