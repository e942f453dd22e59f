package algo

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ConfigField describes one configurable parameter published in a config schema.
type ConfigField struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Options     string `json:"options,omitempty"`
	Default     any    `json:"default,omitempty"`
}

type schemaProperty struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Options     string `json:"options,omitempty"`
	Value       any    `json:"value,omitempty"`
}

type schemaDocument struct {
	Title       string                    `json:"title"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]schemaProperty `json:"properties"`
}

// BuildSchema renders the configuration panel document understood by the platform.
// Each field becomes a property whose "value" carries the default.
func BuildSchema(title, description string, fields []ConfigField) string {
	if len(fields) == 0 {
		return ""
	}
	doc := schemaDocument{
		Title:       title,
		Description: description,
		Properties:  make(map[string]schemaProperty, len(fields)),
	}
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		fieldTitle := f.Title
		if fieldTitle == "" {
			fieldTitle = name
		}
		doc.Properties[name] = schemaProperty{
			Title:       fieldTitle,
			Description: f.Description,
			Type:        f.Type,
			Options:     f.Options,
			Value:       f.Default,
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return string(raw)
}

// ParseConfig decodes a Start payload. Empty input yields an empty config.
func ParseConfig(raw string) (Config, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Config{}, nil
	}
	var cfg Config
	if err := json.Unmarshal([]byte(trimmed), &cfg); err != nil {
		return Config{}, err
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, nil
}

// Clone returns a shallow copy.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// JSON renders the config as a JSON object.
func (c Config) JSON() string {
	if c == nil {
		return "{}"
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Lookup resolves key either at the top level or, when the platform echoes the
// schema back, under properties.<key>.value.
func (c Config) Lookup(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	if props, ok := c["properties"].(map[string]any); ok {
		if prop, ok := props[key].(map[string]any); ok {
			if v, ok := prop["value"]; ok {
				return v, true
			}
		}
	}
	v, ok := c[key]
	return v, ok
}

// String returns the string value at key or def.
func (c Config) String(key, def string) string {
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

// Float returns the numeric value at key or def.
func (c Config) Float(key string, def float64) float64 {
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the integer value at key or def.
func (c Config) Int(key string, def int) int {
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

// Bool returns the boolean value at key or def.
func (c Config) Bool(key string, def bool) bool {
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	case float64:
		return v != 0
	}
	return def
}

// Duration returns the duration at key or def. Numbers are read as seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d >= 0 {
			return d
		}
	case float64:
		if v >= 0 {
			return time.Duration(v * float64(time.Second))
		}
	}
	return def
}
