package relay

import (
	"fmt"
	"net/http"
)

// Error is the flat, string-typed failure returned by every relay operation.
// The frontend receives exactly this text; there is no error taxonomy.
type Error string

func (e Error) Error() string { return string(e) }

// errorf builds an Error from a format string.
func errorf(format string, args ...any) Error {
	return Error(fmt.Sprintf(format, args...))
}

// asError converts an arbitrary error into its display text.
func asError(err error) Error {
	if e, ok := err.(Error); ok {
		return e
	}
	return Error(err.Error())
}

// statusDisplay renders a status code as "<code> <reason>", e.g. "404 Not Found".
// Codes without a registered reason render as "<code> <unknown status code>".
func statusDisplay(code int) string {
	text := http.StatusText(code)
	if text == "" {
		text = "<unknown status code>"
	}
	return fmt.Sprintf("%d %s", code, text)
}
