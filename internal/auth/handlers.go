package auth

import (
	"context"
	"errors"

	"obcare-backend/internal/middleware"
	"obcare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const userSessionsPrefix = "user_sessions:"

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder UserFinder
	Signup     *SignupService
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// Login POST /api/v1/auth/login — authenticate, create session, set cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginInput
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return response.Error(c, "Email and password are required", fiber.StatusBadRequest, nil)
	}

	user, err := h.UserFinder.FindByEmailAndPassword(req.Email, req.Password)
	if err != nil {
		switch err {
		case ErrEmailPasswordRequired:
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case ErrInvalidEmail, ErrIncorrectPassword:
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		default:
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:       user.UserID.String(),
		Fullname:     user.Fullname,
		Email:        user.Email,
		Role:         user.Role,
		HospitalCode: user.HospitalCode,
	})

	ctx := context.Background()
	if err := h.Rdb.SAdd(ctx, userSessionsPrefix+user.UserID.String(), sessionID).Err(); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	return response.Success(c, "Login successful", fiber.Map{
		"user": fiber.Map{
			"user_id":       user.UserID.String(),
			"fullname":      user.Fullname,
			"email":         user.Email,
			"role":          user.Role,
			"hospital_code": user.HospitalCode,
		},
	}, nil)
}

// Me GET /api/v1/auth/me — return current session user in standard success format.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := VerifyUser(middleware.GetUser(c))
	if err != nil {
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout — remove session tracking, destroy session, clear cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	sessionUser := middleware.GetUser(c)

	ctx := context.Background()
	if sessionUser != nil && sessionID != "" {
		if m, ok := sessionUser.(map[string]interface{}); ok {
			if userID, _ := m["user_id"].(string); userID != "" {
				_ = h.Rdb.SRem(ctx, userSessionsPrefix+userID, sessionID).Err()
			}
		}
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}

// SignupCustomer POST /api/v1/auth/signup — public customer registration via invite code.
func (h *Handlers) SignupCustomer(c *fiber.Ctx) error {
	if h.Signup == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var body struct {
		Fullname   string `json:"fullname"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		InviteCode string `json:"invite_code"`
	}
	if err := c.BodyParser(&body); err != nil ||
		body.Fullname == "" || body.Email == "" || body.Password == "" || body.InviteCode == "" {
		return response.Error(c, "Fullname, email, password and invite_code are required", fiber.StatusBadRequest, nil)
	}

	user, inviteResult, err := h.Signup.Signup(c.Context(), SignupInput{
		Fullname:   body.Fullname,
		Email:      body.Email,
		Password:   body.Password,
		InviteCode: body.InviteCode,
		IP:         middleware.ClientIP(c),
		UserAgent:  middleware.ClientUserAgent(c),
	})
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, ErrSignupRateLimited) {
			status = fiber.StatusTooManyRequests
		}
		return response.Error(c, err.Error(), status, nil)
	}
	if user == nil {
		// Redemption failed with a typed result; surface the error code.
		return response.Error(c, inviteResult.Error, fiber.StatusBadRequest, fiber.Map{
			"error_code": inviteResult.ErrorCode,
		})
	}

	return response.SuccessCreated(c, "Signup successful", fiber.Map{
		"user": fiber.Map{
			"user_id":       user.UserID.String(),
			"fullname":      user.Fullname,
			"email":         user.Email,
			"role":          user.Role,
			"hospital_code": user.HospitalCode,
		},
		"hospital": inviteResult.Hospital,
	}, nil)
}
