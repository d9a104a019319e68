package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"
)

// Emitter delivers a named event to the frontend.
type Emitter interface {
	Emit(event string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any) error

func (f EmitterFunc) Emit(event string, payload any) error { return f(event, payload) }

// ChunkPayload carries one decoded piece of a streamed body.
type ChunkPayload struct {
	Chunk string `json:"chunk"`
}

// ErrorPayload terminates a stream with a failure.
type ErrorPayload struct {
	Error string `json:"error"`
}

// CompletePayload terminates a stream successfully.
type CompletePayload struct {
	Done bool `json:"done"`
}

// ChunkEvent, ErrorEvent and CompleteEvent name the events of one stream.
func ChunkEvent(streamID string) string    { return "stream-chunk-" + streamID }
func ErrorEvent(streamID string) string    { return "stream-error-" + streamID }
func CompleteEvent(streamID string) string { return "stream-complete-" + streamID }

// StreamAPI sends the request and forwards the body to em as it arrives.
// Each chunk that is valid UTF-8 becomes a stream-chunk event; the stream ends
// with exactly one stream-error or stream-complete event. A chunk that does not
// decode on its own is dropped, even when the bytes belong to a character split
// across reads.
func (s *Service) StreamAPI(ctx context.Context, em Emitter, streamID string, spec RequestSpec) error {
	logger := s.logger.With(slog.String("stream_id", streamID))

	fail := func(msg Error) error {
		s.emit(logger, em, ErrorEvent(streamID), ErrorPayload{Error: string(msg)})
		return msg
	}

	req, err := NewRequest(ctx, spec)
	if err != nil {
		return fail(asError(err))
	}

	resp, err := s.client().Do(req)
	if err != nil {
		logger.Debug("stream_api send failed", slog.String("url", spec.URL), slog.String("error", err.Error()))
		return fail(asError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(errorf("Request failed with status: %s", statusDisplay(resp.StatusCode)))
	}

	buf := make([]byte, s.readBuffer)
	chunks := 0
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if utf8.Valid(buf[:n]) {
				s.emit(logger, em, ChunkEvent(streamID), ChunkPayload{Chunk: string(buf[:n])})
				chunks++
			} else {
				logger.Debug("dropped chunk with invalid utf-8", slog.Int("bytes", n))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Debug("stream_api read failed", slog.String("error", err.Error()), slog.Int("chunks", chunks))
			return fail(asError(err))
		}
	}

	s.emit(logger, em, CompleteEvent(streamID), CompletePayload{Done: true})
	logger.Debug("stream_api completed", slog.String("url", spec.URL), slog.Int("chunks", chunks))
	return nil
}

// emit delivers an event. Delivery failures do not affect the stream.
func (s *Service) emit(logger *slog.Logger, em Emitter, event string, payload any) {
	if err := em.Emit(event, payload); err != nil {
		logger.Warn("emit failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
