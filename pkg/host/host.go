// Package host provides the public API for embedding the relay backend.
// This is the stable API for external consumers.
package host

import (
	"github.com/tjfontaine/aj7-relay/internal/runtime"
)

// Host is the relay backend: command endpoint, event stream and outbound relay.
// See internal/runtime.Host for full documentation.
type Host = runtime.Host

// Option is a functional option for configuring a Host.
type Option = runtime.Option

// New creates a new Host with the given options.
// Example:
//
//	h, err := host.New(
//	    host.WithFileConfig("config.yaml"),
//	    host.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	WithConfig     = runtime.WithConfig
	WithFileConfig = runtime.WithFileConfig
	WithLogger     = runtime.WithLogger
	WithTransport  = runtime.WithTransport
	WithListener   = runtime.WithListener
)
