// Package timeout defines centralized timeout constants for context building
// and the services around it.
package timeout

import "time"

const (
	// BuildTimeout bounds one context build including every adapter call.
	BuildTimeout = 20 * time.Second

	// HostRequestTimeout is the default per-request timeout against the
	// Home Assistant REST API.
	HostRequestTimeout = 15 * time.Second

	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout = 5 * time.Second

	// ProbeInterval is the pause between reachability probes.
	ProbeInterval = 30 * time.Second

	// CachePingTimeout bounds the initial connection check of a shared cache.
	CachePingTimeout = 5 * time.Second

	// ShutdownTimeout is how long the server waits for in-flight requests.
	ShutdownTimeout = 10 * time.Second
)
