package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/homesense/internal/observability"
	"github.com/hrygo/homesense/internal/profile"
	"github.com/hrygo/homesense/plugin/ai/timeout"
	apiv1 "github.com/hrygo/homesense/server/router/api/v1"
	"github.com/hrygo/homesense/server/runner/probe"
)

// Server serves the HTTP API and owns its background runners.
type Server struct {
	Profile *profile.Profile

	echoServer  *echo.Echo
	apiV1       *apiv1.APIV1Service
	probeRunner *probe.Runner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. pinger may be nil when no live host is
// configured.
func NewServer(profile *profile.Profile, contextService apiv1.ContextService, metrics *observability.Metrics, pinger probe.Pinger) *Server {
	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())

	s := &Server{
		Profile:    profile,
		echoServer: echoServer,
		apiV1:      apiv1.NewAPIV1Service(profile, contextService, metrics),
	}
	if pinger != nil {
		s.probeRunner = probe.NewRunner(pinger, timeout.ProbeInterval)
		s.apiV1.Probe = s.probeRunner
	}
	s.apiV1.RegisterRoutes(echoServer)
	return s
}

// Start starts the runners and the HTTP listener. It returns once the
// listener goroutine is running.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.probeRunner != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.probeRunner.Run(ctx)
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.apiV1.PruneLimiters(ctx, 10*time.Minute)
	}()

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("homesense server started", "address", address, "mode", s.Profile.Mode)
	return nil
}

// Shutdown stops the listener and waits for the runners.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("server stopped properly")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}
