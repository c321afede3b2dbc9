package auth

import (
	"context"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/constants"
	"obcare-backend/internal/invites"
	"obcare-backend/internal/models"
	"obcare-backend/internal/pkg/validation"
	"obcare-backend/internal/ratelimit"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SignupService registers customers under a hospital via invite-code redemption.
type SignupService struct {
	DB      *gorm.DB
	Invites *invites.Service
	Limiter *ratelimit.Limiter
	Auditor *audit.Auditor
}

type SignupInput struct {
	Fullname   string
	Email      string
	Password   string
	InviteCode string
	IP         string
	UserAgent  string
}

// Signup validates input, redeems the invite code and creates the customer
// account. A failed redemption returns the typed invites.Result so the form
// can render the exact reason; only infrastructure problems come back as error.
// Every attempt produces one signup audit entry.
func (s *SignupService) Signup(ctx context.Context, in SignupInput) (*models.User, *invites.Result, error) {
	if s.Limiter != nil {
		rl, _ := s.Limiter.Check(ctx, in.IP, models.ActionSignup)
		if !rl.Allowed {
			s.logSignup(ctx, in, "", "", false, "rate_limited")
			return nil, nil, ErrSignupRateLimited
		}
	}

	if !validation.IsValidEmail(in.Email) {
		s.logSignup(ctx, in, "", "", false, "invalid_email")
		return nil, nil, ErrInvalidEmailFormat
	}
	if !validation.IsValidPassword(in.Password) {
		s.logSignup(ctx, in, "", "", false, "weak_password")
		return nil, nil, ErrWeakPassword
	}
	if !validation.IsValidFullname(in.Fullname) {
		s.logSignup(ctx, in, "", "", false, "invalid_fullname")
		return nil, nil, ErrInvalidFullname
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return nil, nil, err
	}
	if n > 0 {
		s.logSignup(ctx, in, "", "", false, "email_taken")
		return nil, nil, ErrEmailTaken
	}

	// The usage record needs the customer id, so the id is minted before the
	// user row exists and the redemption runs first.
	userID := uuid.New()
	res := s.Invites.Redeem(ctx, in.InviteCode, invites.RedeemInput{
		CustomerID: userID.String(),
		IP:         in.IP,
		UserAgent:  in.UserAgent,
	})
	if !res.IsValid {
		s.logSignup(ctx, in, "", "", false, string(res.ErrorCode))
		return nil, &res, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	hospitalCode := res.Hospital.Code
	user := &models.User{
		UserID:       userID,
		Fullname:     in.Fullname,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         constants.Customer,
		HospitalCode: &hospitalCode,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		// The redemption already consumed a slot; this needs operator attention.
		log.Error().Err(err).Str("email", in.Email).Str("invite_code", in.InviteCode).
			Msg("user create failed after invite redemption")
		s.logSignup(ctx, in, userID.String(), hospitalCode, false, "user_create_failed")
		return nil, nil, err
	}

	s.logSignup(ctx, in, userID.String(), hospitalCode, true, "")
	return user, &res, nil
}

func (s *SignupService) logSignup(ctx context.Context, in SignupInput, userID, hospitalCode string, success bool, reason string) {
	details := map[string]interface{}{}
	if reason != "" {
		details["reason"] = reason
	}
	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionSignup,
		UserID:       userID,
		HospitalCode: hospitalCode,
		InviteCode:   in.InviteCode,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Success:      success,
		Details:      details,
	})
}
