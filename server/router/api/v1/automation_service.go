package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/homesense/plugin/ai/automation"
)

type ValidateAutomationRequest struct {
	YAML string `json:"yaml"`
}

// ValidateAutomation validates automation YAML. Invalid documents are still a
// 200 with valid=false.
// POST /api/v1/automation/validate
func (s *APIV1Service) ValidateAutomation(c echo.Context) error {
	req := &ValidateAutomationRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.YAML == "" {
		return badRequest(c, "yaml is required")
	}
	return c.JSON(http.StatusOK, automation.ValidateYAML(req.YAML))
}

type ExtractAutomationRequest struct {
	Text string `json:"text"`
}

// ExtractAutomation pulls the JSON object out of a model reply.
// POST /api/v1/automation/extract
func (s *APIV1Service) ExtractAutomation(c echo.Context) error {
	req := &ExtractAutomationRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid request body")
	}
	data := automation.ExtractJSON(req.Text)
	if data == nil {
		return badRequest(c, "no JSON object found")
	}
	return c.JSON(http.StatusOK, data)
}

// ListNotificationTemplates lists the known event types.
// GET /api/v1/notifications
func (s *APIV1Service) ListNotificationTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"event_types": automation.EventTypes()})
}

// GetNotificationTemplate returns the template for an event type.
// GET /api/v1/notifications/:event
func (s *APIV1Service) GetNotificationTemplate(c echo.Context) error {
	tmpl, ok := automation.NotificationTemplate(c.Param("event"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Error: "unknown event type"})
	}
	return c.JSON(http.StatusOK, tmpl)
}
