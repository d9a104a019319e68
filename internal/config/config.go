package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override; "__" separates levels,
// e.g. RELAY_SERVER__PORT=1431.
const EnvPrefix = "RELAY_"

// DefaultPath is the config file read when present.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Events    EventsConfig    `koanf:"events"`
	Relay     RelayConfig     `koanf:"relay"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type EventsConfig struct {
	Buffer int `koanf:"buffer"` // per-subscriber queue length
}

type RelayConfig struct {
	Timeout             time.Duration `koanf:"timeout"` // 0 = none
	ChatOffload         bool          `koanf:"chat_offload"`
	DenyPrivateNetworks bool          `koanf:"deny_private_networks"`
	Stream              StreamConfig  `koanf:"stream"`
}

type StreamConfig struct {
	ReadBuffer int `koanf:"read_buffer"`
}

type TelemetryConfig struct {
	Exporter    string `koanf:"exporter"` // none, stdout
	ServiceName string `koanf:"service_name"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// SlogLevel maps Level onto slog, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

var defaults = map[string]any{
	"server.host":                 "127.0.0.1",
	"server.port":                 1430,
	"server.allowed_origins":      []string{"*"},
	"events.buffer":               256,
	"relay.timeout":               "0s",
	"relay.chat_offload":          false,
	"relay.deny_private_networks": false,
	"relay.stream.read_buffer":    32 * 1024,
	"telemetry.exporter":          "none",
	"telemetry.service_name":      "aj7-relay",
	"log.level":                   "info",
}

// Load reads DefaultPath if it exists, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path if it exists, then applies environment overrides. A
// missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the runtime cannot use.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Relay.Timeout < 0 {
		return fmt.Errorf("relay.timeout must not be negative")
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("telemetry.exporter %q not supported", c.Telemetry.Exporter)
	}
	return nil
}
