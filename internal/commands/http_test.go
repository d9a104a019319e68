package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	r := NewRegistry()
	r.Register("ok", func(context.Context, json.RawMessage) (any, error) {
		return map[string]int{"n": 1}, nil
	})
	r.Register("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("Request failed (500): {}")
	})
	r.Register("strict", func(_ context.Context, args json.RawMessage) (any, error) {
		var v struct{ N int }
		if err := decodeArgs("strict", args, &v); err != nil {
			return nil, err
		}
		return v.N, nil
	})

	router := chi.NewRouter()
	NewHTTPHandler(r, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(router)
	return router
}

func TestHTTPHandler_Invoke(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"result", "/invoke/ok", "", http.StatusOK, `{"n":1}`},
		{"command error", "/invoke/fail", "{}", http.StatusInternalServerError, `"Request failed (500): {}"`},
		{"bad args", "/invoke/strict", `{"N":"x"}`, http.StatusBadRequest, ""},
		{"decoded args", "/invoke/strict", `{"N":4}`, http.StatusOK, `4`},
		{"unknown", "/invoke/missing", "", http.StatusNotFound, `"command not found: missing"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); tt.wantBody != "" && got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestHTTPHandler_List(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/commands", nil))

	if got := strings.TrimSpace(w.Body.String()); got != `["fail","ok","strict"]` {
		t.Errorf("body = %s", got)
	}
}

func TestHTTPHandler_UnencodableResult(t *testing.T) {
	r := NewRegistry()
	r.Register("chan", func(context.Context, json.RawMessage) (any, error) {
		return make(chan int), nil
	})

	var logs bytes.Buffer
	router := chi.NewRouter()
	NewHTTPHandler(r, slog.New(slog.NewJSONHandler(&logs, nil))).Routes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/invoke/chan", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var msg string
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil || !strings.HasPrefix(msg, "encode result: ") {
		t.Errorf("body = %q, want JSON string error", w.Body.String())
	}
	if !strings.Contains(logs.String(), `"level":"WARN"`) || !strings.Contains(logs.String(), "encoding command response") {
		t.Errorf("expected warn log, got %s", logs.String())
	}
}
