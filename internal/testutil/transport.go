package testutil

import (
	"errors"
	"io"
	"net/http"
)

// ChunkedTransport answers every request with Status and a body that yields
// Chunks one Read at a time. If Err is set it is returned after the last chunk
// instead of io.EOF. SendErr, if set, fails the round trip itself.
type ChunkedTransport struct {
	Status  int
	Chunks  [][]byte
	Err     error
	SendErr error

	// Requests holds every request seen, in order.
	Requests []*http.Request
}

func (t *ChunkedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.Requests = append(t.Requests, req)
	if t.SendErr != nil {
		return nil, t.SendErr
	}
	status := t.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       &chunkedBody{chunks: t.Chunks, err: t.Err},
		Request:    req,
	}, nil
}

type chunkedBody struct {
	chunks [][]byte
	err    error
	closed bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, errors.New("read on closed body")
	}
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}
