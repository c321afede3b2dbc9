package monitoring

import (
	"errors"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/middleware"
	"obcare-backend/internal/models"
	"obcare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// GET /api/v1/security/overview (VIEW_SECURITY permission via middleware)
func (h *Handlers) Overview(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	snap, err := h.Service.Collect(c.Context())
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}

	h.Service.Auditor.Log(c.Context(), audit.Entry{
		Action:    models.ActionAdminAccess,
		UserID:    actor.UserID,
		IP:        middleware.ClientIP(c),
		UserAgent: middleware.ClientUserAgent(c),
		Success:   true,
		Details:   map[string]interface{}{"operation": "security_overview"},
	})
	return response.Success(c, "Security overview fetched successfully", snap, nil)
}

// GET /api/v1/security/audit-logs?limit=N (VIEW_SECURITY permission via middleware)
func (h *Handlers) AuditLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	entries, err := h.Service.Auditor.Recent(c.Context(), limit)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Audit logs fetched successfully", entries, nil)
}

// GET /api/v1/security/alerts (VIEW_SECURITY permission via middleware)
func (h *Handlers) Alerts(c *fiber.Ctx) error {
	alerts, err := h.Service.Auditor.Unresolved(c.Context())
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Open alerts fetched successfully", alerts, nil)
}

// PATCH /api/v1/security/resolve-alert (RESOLVE_ALERT permission via middleware)
func (h *Handlers) ResolveAlert(c *fiber.Ctx) error {
	var body struct {
		AlertID string `json:"alert_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.AlertID == "" {
		return response.Error(c, "alert_id is required", 400, nil)
	}
	alertID, err := uuid.Parse(body.AlertID)
	if err != nil {
		return response.Error(c, "alert_id must be a UUID", 400, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	if err := h.Service.Auditor.ResolveAlert(c.Context(), alertID); err != nil {
		status := 500
		if errors.Is(err, audit.ErrAlertNotFound) {
			status = 404
		}
		return response.Error(c, err.Error(), status, nil)
	}

	h.Service.Auditor.Log(c.Context(), audit.Entry{
		Action:    models.ActionAdminAccess,
		UserID:    actor.UserID,
		IP:        middleware.ClientIP(c),
		UserAgent: middleware.ClientUserAgent(c),
		Success:   true,
		Details:   map[string]interface{}{"operation": "resolve_alert", "alert_id": body.AlertID},
	})
	return response.Success(c, "Alert resolved", nil, nil)
}
