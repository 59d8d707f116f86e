package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/homesense/internal/observability"
	"github.com/hrygo/homesense/internal/profile"
	hscontext "github.com/hrygo/homesense/plugin/ai/context"
	ratelimit "github.com/hrygo/homesense/server/middleware"
	"github.com/hrygo/homesense/server/runner/probe"
)

// ContextService is the part of the context builder the API needs.
type ContextService interface {
	Build(ctx context.Context, query string, opts hscontext.Options) (*hscontext.Payload, error)
	BuildCached(ctx context.Context, sessionKey string, incognito bool, ttl time.Duration, query string, opts hscontext.Options) (*hscontext.Payload, error)
	RecordResponse(sessionKey, content string)
	GetStats() *hscontext.ContextStats
}

type APIV1Service struct {
	Profile        *profile.Profile
	ContextService ContextService
	Metrics        *observability.Metrics
	// Probe reports Home Assistant reachability; nil for snapshot mode.
	Probe *probe.Runner

	limiter *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, contextService ContextService, metrics *observability.Metrics) *APIV1Service {
	return &APIV1Service{
		Profile:        profile,
		ContextService: contextService,
		Metrics:        metrics,
		limiter:        ratelimit.NewRateLimiter(profile.RateLimit, profile.RateBurst),
	}
}

// RegisterRoutes registers the HTTP API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.Healthz)

	api := echoServer.Group("/api/v1")
	api.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	api.Use(s.limiter.Middleware())

	api.POST("/context", s.BuildContext)
	api.POST("/context/responses", s.RecordResponse)
	api.POST("/automation/validate", s.ValidateAutomation)
	api.POST("/automation/extract", s.ExtractAutomation)
	api.GET("/notifications", s.ListNotificationTemplates)
	api.GET("/notifications/:event", s.GetNotificationTemplate)
	api.GET("/system/metrics", s.GetMetricsOverview)
}

// PruneLimiters drops idle rate limiter entries until ctx is done.
func (s *APIV1Service) PruneLimiters(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Prune(interval)
		}
	}
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Host    *probe.Status `json:"host,omitempty"`
}

// Healthz reports liveness and, when probed, whether Home Assistant answers.
// The host only counts once it has been checked.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.Profile.Version}
	if s.Probe != nil {
		status := s.Probe.Status()
		resp.Host = &status
		if !status.CheckedAt.IsZero() && !status.Healthy {
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
