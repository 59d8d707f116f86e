package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	apperrors "github.com/hrygo/homesense/internal/errors"
	hscontext "github.com/hrygo/homesense/plugin/ai/context"
	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// BuildContextRequest asks for the context of one user message.
type BuildContextRequest struct {
	Query      string         `json:"query"`
	Options    map[string]any `json:"options"`
	SessionKey string         `json:"session_key"`
	Incognito  bool           `json:"incognito"`
	// TTLSeconds overrides the cache ttl for summary-only requests.
	TTLSeconds int `json:"ttl_seconds"`
	// Prompt additionally returns the framed prompt text.
	Prompt bool `json:"prompt"`
}

// BuildContextResponse carries the payload and the session it was cached under.
type BuildContextResponse struct {
	SessionKey string             `json:"session_key"`
	Context    *hscontext.Payload `json:"context"`
	Prompt     string             `json:"prompt,omitempty"`
}

// BuildContext builds the context payload for a query. Summary-only requests
// go through the per-session response cache.
// POST /api/v1/context
func (s *APIV1Service) BuildContext(c echo.Context) error {
	req := &BuildContextRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return badRequest(c, "query is required")
	}

	opts, err := hscontext.DecodeOptions(mergeOptions(s.Profile.ContextOptions, req.Options))
	if err != nil {
		return writeError(c, apperrors.InvalidArgument("invalid context options", err))
	}
	if req.SessionKey == "" {
		req.SessionKey = shortuuid.New()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.BuildTimeout)
	defer cancel()
	var payload *hscontext.Payload
	if opts.SummaryOnly {
		ttl := time.Duration(req.TTLSeconds) * time.Second
		payload, err = s.ContextService.BuildCached(ctx, req.SessionKey, req.Incognito, ttl, req.Query, opts)
	} else {
		payload, err = s.ContextService.Build(ctx, req.Query, opts)
	}
	if err != nil {
		return writeError(c, err)
	}

	resp := &BuildContextResponse{SessionKey: req.SessionKey, Context: payload}
	if req.Prompt {
		prompt, err := hscontext.FormatPrompt(req.Query, payload)
		if err != nil {
			return writeError(c, err)
		}
		resp.Prompt = prompt
	}
	return c.JSON(http.StatusOK, resp)
}

// RecordResponseRequest stores an assistant reply for later suggestions.
type RecordResponseRequest struct {
	SessionKey string `json:"session_key"`
	Content    string `json:"content"`
}

// RecordResponse records an assistant response for the session.
// POST /api/v1/context/responses
func (s *APIV1Service) RecordResponse(c echo.Context) error {
	req := &RecordResponseRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SessionKey == "" || strings.TrimSpace(req.Content) == "" {
		return badRequest(c, "session_key and content are required")
	}
	s.ContextService.RecordResponse(req.SessionKey, req.Content)
	return c.NoContent(http.StatusNoContent)
}

// mergeOptions overlays request options on the configured defaults.
func mergeOptions(defaults, request map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(request))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range request {
		merged[k] = v
	}
	return merged
}
