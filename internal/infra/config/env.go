package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ALGOHOST_"

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. Missing files are ignored; variables already set
// win over file values.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays ALGOHOST_* variables on top of the file configuration.
func (c *AppConfig) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ENV":           (*string)(&c.Environment),
		"SERVER_ADDR":   &c.Server.Addr,
		"METRICS_ADDR":  &c.Server.MetricsAddr,
		"PLATFORM_ADDR": &c.Platform.Addr,
		"SCRIPTS_DIR":   &c.Plugins.ScriptsDir,
		"JOURNAL_DSN":   &c.Journal.DSN,
		"OTLP_ENDPOINT": &c.Telemetry.OTLPEndpoint,
		"LOG_LEVEL":     &c.Logging.Level,
	}
	for key, target := range strs {
		if value, ok := lookup(EnvPrefix + key); ok {
			*target = strings.TrimSpace(value)
		}
	}

	bools := map[string]*bool{
		"SIMULATED":       &c.Platform.Simulated,
		"JOURNAL_ENABLED": &c.Journal.Enabled,
		"LOG_CONSOLE":     &c.Logging.Console,
	}
	for key, target := range bools {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*target = parsed
	}
	return nil
}
