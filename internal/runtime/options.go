package runtime

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/tjfontaine/aj7-relay/internal/config"
)

// Option is a functional option for configuring a Host.
type Option func(*Host) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(h *Host) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		h.cfg = cfg
		return nil
	}
}

// WithFileConfig loads configuration from path plus environment overrides.
func WithFileConfig(path string) Option {
	return func(h *Host) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		h.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}

// WithTransport replaces the outbound round tripper. It takes precedence over
// relay.deny_private_networks.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Host) error {
		h.transport = rt
		return nil
	}
}

// WithListener serves on ln instead of listening on the configured address.
func WithListener(ln net.Listener) Option {
	return func(h *Host) error {
		h.listener = ln
		return nil
	}
}
