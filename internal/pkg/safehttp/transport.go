// Package safehttp provides an outbound transport that refuses to reach
// loopback, private and link-local addresses.
package safehttp

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// ErrDenied is wrapped by dial errors for refused addresses.
var ErrDenied = errors.New("access to private address is denied")

// NewTransport returns a copy of http.DefaultTransport whose dialer checks
// each resolved peer address before connecting.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = dialer.DialContext
	// Proxies would be dialed instead of the target, bypassing the check.
	t.Proxy = nil
	return t
}

func control(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("parse peer address %q: %w", address, err)
	}
	if Denied(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrDenied, ap.Addr())
	}
	return nil
}

// Denied reports whether addr is one the transport refuses.
func Denied(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
