package events

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Handler streams hub events to a websocket client. Repeated ?event=<name>
// query parameters restrict delivery to those names.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. checkOrigin may be nil to accept any origin.
func NewHandler(hub *Hub, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:      hub,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   hub.logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the 101 goes out so events emitted as soon as the
	// client sees the handshake are delivered.
	sub := h.hub.Subscribe(r.URL.Query()["event"]...)
	defer sub.Cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrading to websocket", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	h.logger.Debug("event subscriber connected", slog.String("remote_addr", r.RemoteAddr))

	// The client never sends anything meaningful; reading detects disconnects.
	go func() {
		defer sub.Cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for env := range sub.C {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			h.logger.Debug("event subscriber write failed", slog.String("error", err.Error()))
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
