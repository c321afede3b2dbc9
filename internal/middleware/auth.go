package middleware

import (
	"obcare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals(userLocal)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		// Attach auth context for handlers (same key)
		c.Locals("auth", user)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// Actor is the decoded session user for handlers.
type Actor struct {
	UserID       string
	Fullname     string
	Email        string
	Role         string
	HospitalCode string
}

// GetActor decodes the session user map, nil if absent or malformed.
func GetActor(c *fiber.Ctx) *Actor {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return nil
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil
	}
	a := &Actor{UserID: userID}
	a.Fullname, _ = m["fullname"].(string)
	a.Email, _ = m["email"].(string)
	a.Role, _ = m["role"].(string)
	if h, ok := m["hospital_code"]; ok && h != nil {
		if s, ok := h.(string); ok {
			a.HospitalCode = s
		}
	}
	return a
}
