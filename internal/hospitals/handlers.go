package hospitals

import (
	"errors"

	"obcare-backend/internal/middleware"
	"obcare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/hospitals/onboard (ONBOARD_HOSPITAL permission via middleware)
func (h *Handlers) Onboard(c *fiber.Ctx) error {
	var body struct {
		Name           string `json:"name"`
		Type           string `json:"type"`
		Region         string `json:"region"`
		Address        string `json:"address"`
		Phone          string `json:"phone"`
		RegistrationNo string `json:"registration_no"`
		LicenseNo      string `json:"license_no"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" || body.Type == "" || body.Region == "" {
		return response.Error(c, "Name, type and region are required", 400, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	hosp, err := h.Service.Onboard(c.Context(), OnboardInput{
		Name:           body.Name,
		Type:           body.Type,
		Region:         body.Region,
		Address:        body.Address,
		Phone:          body.Phone,
		RegistrationNo: body.RegistrationNo,
		LicenseNo:      body.LicenseNo,
		ActorID:        actor.UserID,
		IP:             middleware.ClientIP(c),
		UserAgent:      middleware.ClientUserAgent(c),
	})
	if err != nil {
		status := 400
		if errors.Is(err, ErrRateLimited) {
			status = 429
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.SuccessCreated(c, "Hospital onboarded successfully", hosp, nil)
}

// PATCH /api/v1/hospitals/deactivate (DEACTIVATE_HOSPITAL permission via middleware)
func (h *Handlers) Deactivate(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil || body.Code == "" {
		return response.Error(c, "Hospital code is required", 400, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	hosp, err := h.Service.Deactivate(c.Context(), body.Code, actor.UserID,
		middleware.ClientIP(c), middleware.ClientUserAgent(c))
	if err != nil {
		status := 400
		if errors.Is(err, ErrHospitalNotFound) {
			status = 404
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.Success(c, "Hospital deactivated", hosp, nil)
}

// GET /api/v1/hospitals/view-hospital/:code
func (h *Handlers) ViewHospital(c *fiber.Ctx) error {
	code := c.Params("code")
	hosp, err := h.Service.Get(c.Context(), code)
	if err != nil {
		status := 400
		if errors.Is(err, ErrHospitalNotFound) {
			status = 404
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.Success(c, "Hospital fetched successfully", hosp, nil)
}

// GET /api/v1/hospitals/view-hospitals
func (h *Handlers) ViewHospitals(c *fiber.Ctx) error {
	hospitals, err := h.Service.List(c.Context())
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Success(c, "Hospitals fetched successfully", hospitals, nil)
}
