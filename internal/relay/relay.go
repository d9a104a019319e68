// Package relay performs outbound HTTP calls on behalf of the desktop frontend
// and hands the results back, either whole or as a sequence of chunk events.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultReadBuffer = 32 * 1024

// Option configures a Service.
type Option func(*Service)

// WithTransport sets the round tripper every per-call client is built around.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Service) {
		s.transport = rt
	}
}

// WithTimeout sets a per-call client timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithReadBuffer sets the maximum size of a single streamed chunk.
func WithReadBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.readBuffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service relays requests. It holds configuration only; every call builds its
// own client and owns its request/response lifecycle.
type Service struct {
	transport  http.RoundTripper
	timeout    time.Duration
	readBuffer int
	logger     *slog.Logger
}

// New creates a Service. Without WithTransport the default transport is used,
// instrumented with otelhttp.
func New(opts ...Option) *Service {
	s := &Service{
		readBuffer: defaultReadBuffer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	s.logger = s.logger.With(slog.String("component", "relay"))
	return s
}

func (s *Service) client() *http.Client {
	return &http.Client{
		Transport: s.transport,
		Timeout:   s.timeout,
	}
}

// CallAPI sends the request and returns the response body parsed as JSON, or
// {"raw": text} when it is not JSON. Statuses of 400 and above are errors.
func (s *Service) CallAPI(ctx context.Context, spec RequestSpec) (any, error) {
	req, err := NewRequest(ctx, spec)
	if err != nil {
		return nil, err
	}

	resp, err := s.client().Do(req)
	if err != nil {
		s.logger.Debug("call_api send failed", slog.String("url", spec.URL), slog.String("error", err.Error()))
		return nil, asError(err)
	}
	defer resp.Body.Close()

	text, err := readText(resp.Body)
	if err != nil {
		return nil, asError(err)
	}

	result := parseBody(text)
	s.logger.Debug("call_api completed",
		slog.String("method", req.Method),
		slog.String("url", spec.URL),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return nil, errorf("Request failed (%d): %s", resp.StatusCode, encodeCompact(result))
	}
	return result, nil
}

// ChatAPI POSTs body as JSON and returns the raw response text. Client and
// server error statuses fail with the raw text, not a JSON-wrapped one.
func (s *Service) ChatAPI(ctx context.Context, url, body string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return "", asError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		s.logger.Debug("chat_api send failed", slog.String("url", url), slog.String("error", err.Error()))
		return "", asError(err)
	}
	defer resp.Body.Close()

	text, err := readText(resp.Body)
	if err != nil {
		return "", asError(err)
	}

	s.logger.Debug("chat_api completed", slog.String("url", url), slog.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		return "", errorf("Request failed (%s): %s", statusDisplay(resp.StatusCode), text)
	}
	return text, nil
}

// readText reads the full body, replacing invalid UTF-8 sequences.
func readText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// parseBody decodes text as exactly one JSON value, keeping number precision.
// Anything else becomes {"raw": text}.
func parseBody(text string) any {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return map[string]any{"raw": text}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return map[string]any{"raw": text}
	}
	return v
}

// encodeCompact renders v as compact JSON without HTML escaping.
func encodeCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n"))
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into the raw characters. Escaped backslashes are skipped
// so a literal `\\u2028` in a string is left alone.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		if s[i+1] == 'u' && i+6 <= len(s) {
			switch s[i+2 : i+6] {
			case "2028":
				b.WriteRune('\u2028')
				i += 5
				continue
			case "2029":
				b.WriteRune('\u2029')
				i += 5
				continue
			}
		}
		b.WriteByte(s[i])
		b.WriteByte(s[i+1])
		i++
	}
	return b.String()
}
