package invites

import (
	"errors"
	"time"

	"obcare-backend/internal/middleware"
	"obcare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/invites/public/validate (no auth)
// Validation outcomes, valid or not, come back as 200 with a typed result so
// the signup form can render a specific message per error code.
func (h *Handlers) Validate(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil || body.Code == "" {
		return response.Error(c, "Invite code is required", 400, nil)
	}

	result := h.Service.Validate(c.Context(), body.Code, Context{
		IP:        middleware.ClientIP(c),
		UserAgent: middleware.ClientUserAgent(c),
	})
	msg := "Invite code is valid"
	if !result.IsValid {
		msg = "Invite code is not valid"
	}
	return response.Success(c, msg, result, nil)
}

// POST /api/v1/invites/create-invite (CREATE_INVITE permission via middleware)
func (h *Handlers) CreateInvite(c *fiber.Ctx) error {
	var body struct {
		HospitalCode string     `json:"hospital_code"`
		ExpiresAt    *time.Time `json:"expires_at"`
		MaxUses      *int       `json:"max_uses"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.MaxUses != nil && *body.MaxUses < 1 {
		return response.Error(c, "max_uses must be at least 1", 400, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	hospitalCode := body.HospitalCode
	if hospitalCode == "" {
		hospitalCode = actor.HospitalCode
	}
	if hospitalCode == "" {
		return response.Error(c, "User is not associated with any hospital", 403, nil)
	}

	in := CreateInput{
		HospitalCode: hospitalCode,
		CreatedBy:    actor.UserID,
		MaxUses:      body.MaxUses,
		IP:           middleware.ClientIP(c),
		UserAgent:    middleware.ClientUserAgent(c),
	}
	if body.ExpiresAt != nil {
		in.ExpiresAt = *body.ExpiresAt
	}

	inv, err := h.Service.Create(c.Context(), in)
	if err != nil {
		status := 400
		if errors.Is(err, ErrRateLimited) {
			status = 429
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.SuccessCreated(c, "Invite code created successfully", inv, nil)
}

// PATCH /api/v1/invites/deactivate-invite (DEACTIVATE_INVITE permission via middleware)
func (h *Handlers) DeactivateInvite(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil || body.Code == "" {
		return response.Error(c, "Invite code is required", 400, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	inv, err := h.Service.Deactivate(c.Context(), body.Code, actor.UserID,
		middleware.ClientIP(c), middleware.ClientUserAgent(c))
	if err != nil {
		status := 400
		if errors.Is(err, ErrInviteNotFound) {
			status = 404
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.Success(c, "Invite code deactivated", inv, nil)
}

// GET /api/v1/invites/view-invites (VIEW_INVITES permission via middleware)
func (h *Handlers) ListInvites(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	hospitalCode := c.Query("hospital_code")
	if hospitalCode == "" {
		hospitalCode = actor.HospitalCode
	}
	if hospitalCode == "" {
		return response.Error(c, "User is not associated with any hospital", 403, nil)
	}

	invs, err := h.Service.ListByHospital(c.Context(), hospitalCode)
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Success(c, "Invite codes fetched successfully", invs, nil)
}
