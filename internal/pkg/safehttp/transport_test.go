package safehttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestDenied(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.1.2.3", true},
		{"192.168.1.20", true},
		{"172.16.0.1", true},
		{"169.254.169.254", true},
		{"fe80::1", true},
		{"0.0.0.0", true},
		{"::ffff:127.0.0.1", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		if got := Denied(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("Denied(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestNewTransport_RefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport()}
	_, err := client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected loopback dial to fail")
	}
	if !errors.Is(err, ErrDenied) {
		t.Errorf("error = %v, want ErrDenied", err)
	}
}
