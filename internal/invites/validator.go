package invites

import (
	"context"
	"strings"
	"time"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/models"
	"obcare-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Context carries the caller identity for validation (rate keys, audit trail).
type Context struct {
	IP        string
	UserAgent string
	UserID    string
}

// HospitalInfo is the denormalized hospital snapshot returned on success.
type HospitalInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Region string `json:"region"`
}

// CodeInfo describes the validated code. RemainingUses nil means unlimited.
type CodeInfo struct {
	Code          string    `json:"code"`
	ExpiresAt     time.Time `json:"expires_at"`
	RemainingUses *int      `json:"remaining_uses"`
}

// Result is the outcome of one validation. Failures are values, not errors:
// ErrorCode is set and IsValid is false.
type Result struct {
	IsValid   bool          `json:"is_valid"`
	Hospital  *HospitalInfo `json:"hospital,omitempty"`
	Code      *CodeInfo     `json:"code,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorCode ErrorCode     `json:"error_code,omitempty"`
}

func failure(code ErrorCode) Result {
	return Result{IsValid: false, Error: code.Message(), ErrorCode: code}
}

// Validate runs the check chain for a candidate code and records exactly one
// audit entry for the attempt, success or not. It never returns an error: all
// outcomes, including infrastructure failures, map to a Result.
func (s *Service) Validate(ctx context.Context, code string, vctx Context) Result {
	res, hospitalCode := s.runChecks(ctx, code, vctx)

	details := map[string]interface{}{}
	if res.ErrorCode != "" {
		details["error_code"] = string(res.ErrorCode)
	}
	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionCodeValidation,
		UserID:       vctx.UserID,
		HospitalCode: hospitalCode,
		InviteCode:   normalizeCode(code),
		IP:           vctx.IP,
		UserAgent:    vctx.UserAgent,
		Success:      res.IsValid,
		Details:      details,
	})
	return res
}

// runChecks is the ordered short-circuit chain: format, lookup, active flag,
// expiry, usage cap, hospital active, rate gate. Cheap and general checks come
// first; the order is part of the contract.
func (s *Service) runChecks(ctx context.Context, code string, vctx Context) (Result, string) {
	code = normalizeCode(code)

	if !validation.IsValidInviteCode(code) {
		return failure(CodeInvalidFormat), ""
	}

	var inv models.InviteCode
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&inv).Error
	if err == gorm.ErrRecordNotFound {
		return failure(CodeNotFound), ""
	}
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("invite lookup failed")
		return failure(CodeSystemError), ""
	}

	if !inv.IsActive {
		return failure(CodeAlreadyUsed), inv.HospitalCode
	}
	if inv.Expired(time.Now()) {
		return failure(CodeExpired), inv.HospitalCode
	}
	if inv.Exhausted() {
		return failure(CodeMaxUsesExceeded), inv.HospitalCode
	}

	var hosp models.Hospital
	err = s.DB.WithContext(ctx).Where("code = ?", inv.HospitalCode).First(&hosp).Error
	if err == gorm.ErrRecordNotFound {
		return failure(CodeHospitalInactive), inv.HospitalCode
	}
	if err != nil {
		log.Error().Err(err).Str("hospital_code", inv.HospitalCode).Msg("hospital lookup failed")
		return failure(CodeSystemError), inv.HospitalCode
	}
	if !hosp.IsActive {
		return failure(CodeHospitalInactive), inv.HospitalCode
	}

	// Rate gate last. Limiter errors fail open here; the rule itself decides.
	if s.Limiter != nil {
		rl, err := s.Limiter.Check(ctx, vctx.IP, models.ActionCodeValidation)
		if err != nil {
			log.Warn().Err(err).Str("ip", vctx.IP).Msg("validation rate check degraded")
		}
		if !rl.Allowed {
			return failure(CodeRateLimitExceeded), inv.HospitalCode
		}
	}

	return Result{
		IsValid: true,
		Hospital: &HospitalInfo{
			Code:   hosp.Code,
			Name:   hosp.Name,
			Type:   hosp.Type,
			Region: hosp.Region,
		},
		Code: &CodeInfo{
			Code:          inv.Code,
			ExpiresAt:     inv.ExpiresAt,
			RemainingUses: inv.RemainingUses(),
		},
	}, inv.HospitalCode
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
