package relay

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// RequestSpec describes an outbound request as the frontend supplies it.
// Headers, when set, is the JSON text of a name → value object.
type RequestSpec struct {
	Method  string
	URL     string
	Headers *string
	Body    *string
}

// ParseMethod returns the upper-cased method when s is a valid HTTP token and
// falls back to GET otherwise. The fallback is silent.
func ParseMethod(s string) string {
	if s == "" {
		return http.MethodGet
	}
	for i := 0; i < len(s); i++ {
		if !httpguts.IsTokenRune(rune(s[i])) {
			return http.MethodGet
		}
	}
	return strings.ToUpper(s)
}

// ParseHeaders decodes the frontend's header JSON. Anything that is not a JSON
// object yields no headers; entries whose value is not a string are skipped.
func ParseHeaders(raw *string) map[string]string {
	if raw == nil {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*raw), &obj); err != nil {
		return nil
	}

	headers := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		headers[k] = s
	}
	return headers
}

// NewRequest builds the *http.Request for spec using the lenient method and
// header rules.
func NewRequest(ctx context.Context, spec RequestSpec) (*http.Request, error) {
	var body io.Reader
	if spec.Body != nil {
		body = strings.NewReader(*spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, ParseMethod(spec.Method), spec.URL, body)
	if err != nil {
		return nil, asError(err)
	}

	if err := applyHeaders(req, ParseHeaders(spec.Headers)); err != nil {
		return nil, err
	}
	return req, nil
}

func applyHeaders(req *http.Request, headers map[string]string) error {
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		v := headers[k]
		if !httpguts.ValidHeaderFieldName(k) {
			return errorf("builder error: invalid header name %q", k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return errorf("builder error: invalid header value for %q", k)
		}
		// net/http ignores Header["Host"] on outgoing requests
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Add(k, v)
	}
	return nil
}
