package commands

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/aj7-relay/internal/server"
)

const maxArgsBytes = 32 << 20

// HTTPHandler serves POST /invoke/{command} and GET /commands.
type HTTPHandler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHTTPHandler creates an HTTPHandler for the registry.
func NewHTTPHandler(registry *Registry, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		registry: registry,
		logger:   logger.With(slog.String("component", "commands")),
	}
}

// Routes mounts the handler's endpoints on r.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Post("/invoke/{command}", h.HandleInvoke)
	r.Get("/commands", h.HandleList)
}

// HandleInvoke runs a command. Results are written as JSON with status 200;
// failures are written as a JSON string.
func (h *HTTPHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	server.AddLogField(r.Context(), "command", name)

	args, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.registry.Invoke(r.Context(), name, args)
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.Debug("command failed", slog.String("command", name), slog.String("error", err.Error()))
		var argsErr *ArgsError
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, err.Error())
		case errors.As(err, &argsErr):
			h.writeJSON(w, http.StatusBadRequest, err.Error())
		default:
			h.writeJSON(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleList returns the registered command names.
func (h *HTTPHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.Names())
}

// writeJSON encodes v before writing the status, so a result that cannot be
// encoded is reported as a 500 instead of an empty 200.
func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("encoding command response", slog.Int("status", status), slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		b, _ = json.Marshal("encode result: " + err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(b, '\n')); err != nil {
		h.logger.Warn("writing command response", slog.String("error", err.Error()))
	}
}
