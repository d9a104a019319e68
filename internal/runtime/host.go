// Package runtime assembles the relay backend: configuration, the relay
// service, the event hub, the command registry and the loopback HTTP server.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/aj7-relay/internal/commands"
	"github.com/tjfontaine/aj7-relay/internal/config"
	"github.com/tjfontaine/aj7-relay/internal/events"
	"github.com/tjfontaine/aj7-relay/internal/pkg/safehttp"
	"github.com/tjfontaine/aj7-relay/internal/relay"
	"github.com/tjfontaine/aj7-relay/internal/server"
)

// Host is the backend the desktop shell launches. It can also be embedded in
// tests or other programs.
type Host struct {
	// Dependencies (injected via options)
	cfg       *config.Config
	logger    *slog.Logger
	transport http.RoundTripper
	listener  net.Listener

	// Assembled in New
	hub      *events.Hub
	relay    *relay.Service
	registry *commands.Registry
	server   *server.Server

	mu      sync.Mutex
	serveWG sync.WaitGroup
	started bool
}

// New assembles a Host. Without WithConfig the defaults from config.LoadFile("")
// are used.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if h.cfg == nil {
		cfg, err := config.LoadFile("")
		if err != nil {
			return nil, fmt.Errorf("load default config: %w", err)
		}
		h.cfg = cfg
	}

	h.hub = events.NewHub(h.cfg.Events.Buffer, h.logger)
	h.relay = relay.New(
		relay.WithTransport(h.outboundTransport()),
		relay.WithTimeout(h.cfg.Relay.Timeout),
		relay.WithReadBuffer(h.cfg.Relay.Stream.ReadBuffer),
		relay.WithLogger(h.logger),
	)

	h.registry = commands.NewRegistry()
	if err := commands.RegisterBuiltins(h.registry, h.relay, h.hub, commands.Options{
		OffloadChat: h.cfg.Relay.ChatOffload,
	}); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	h.server = server.New(h.cfg.Server.Addr(), h.logger, h.cfg.Server.AllowedOrigins)
	commands.NewHTTPHandler(h.registry, h.logger).Routes(h.server.Router)
	h.server.Router.Method(http.MethodGet, "/events",
		events.NewHandler(h.hub, server.OriginChecker(h.cfg.Server.AllowedOrigins)))

	return h, nil
}

func (h *Host) outboundTransport() http.RoundTripper {
	rt := h.transport
	if rt == nil {
		if h.cfg.Relay.DenyPrivateNetworks {
			h.logger.Info("outbound requests to private networks are denied")
			rt = safehttp.NewTransport()
		} else {
			rt = http.DefaultTransport
		}
	}
	return otelhttp.NewTransport(rt)
}

// Start begins serving in the background. The context is only used for
// logging; call Shutdown to stop.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("host already started")
	}

	ln := h.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", h.cfg.Server.Addr())
		if err != nil {
			return fmt.Errorf("listen on %s: %w", h.cfg.Server.Addr(), err)
		}
		h.listener = ln
	}

	h.serveWG.Add(1)
	go func() {
		defer h.serveWG.Done()
		if err := h.server.Serve(ln); err != nil {
			h.logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()
	h.started = true

	h.logger.InfoContext(ctx, "relay host started",
		slog.String("addr", ln.Addr().String()),
		slog.Any("commands", h.registry.Names()),
		slog.Bool("chat_offload", h.cfg.Relay.ChatOffload))
	return nil
}

// Addr returns the address being served, or "" before Start.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Handler exposes the HTTP surface without listening.
func (h *Host) Handler() http.Handler {
	return h.server.Router
}

// Emitter returns the event hub the relay emits into.
func (h *Host) Emitter() relay.Emitter {
	return h.hub
}

// Shutdown waits for in-flight commands, then disconnects event subscribers.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("shutting down relay host")

	var err error
	if h.started {
		if err = h.server.Shutdown(ctx); err != nil {
			h.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
		h.serveWG.Wait()
		h.started = false
	}

	if cerr := h.hub.Close(); cerr != nil {
		h.logger.Error("failed to close event hub", slog.String("error", cerr.Error()))
	}

	h.logger.Info("relay host stopped")
	return err
}
