package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// Pinger is anything that can confirm the host is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the outcome of the latest probe.
type Status struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Runner probes the Home Assistant API in the background so health checks
// never block on it.
type Runner struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a probe runner. A non-positive interval uses
// timeout.ProbeInterval.
func NewRunner(pinger Pinger, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = timeout.ProbeInterval
	}
	return &Runner{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout.ProbeTimeout,
		now:      time.Now,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Probe once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("probe runner stopped")
			return
		}
	}
}

// RunOnce probes the host once and records the result.
func (r *Runner) RunOnce(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	status := Status{Healthy: true, CheckedAt: r.now()}
	if err := r.pinger.Ping(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}

	r.mu.Lock()
	previous := r.status
	r.status = status
	r.mu.Unlock()

	switch {
	case !status.Healthy && (previous.Healthy || previous.CheckedAt.IsZero()):
		slog.Warn("home assistant unreachable", "error", status.Error)
	case status.Healthy && !previous.Healthy && !previous.CheckedAt.IsZero():
		slog.Info("home assistant reachable again")
	}
	return status
}

// Status returns the latest probe result. Before the first probe it reports
// unhealthy with a zero CheckedAt.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
