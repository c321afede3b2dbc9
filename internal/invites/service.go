package invites

import (
	"context"
	"errors"
	"time"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/codes"
	"obcare-backend/internal/models"
	"obcare-backend/internal/ratelimit"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const defaultInviteExpiry = 7 * 24 * time.Hour

// errSlotTaken signals the conditional redemption update matched no row: the
// last slot went to a concurrent redeemer (or the code died in between).
var errSlotTaken = errors.New("no redemption slot available")

// Service owns invite-code lifecycle: creation, validation, redemption,
// deactivation. Validation lives in validator.go.
type Service struct {
	DB        *gorm.DB
	Generator *codes.Generator
	Limiter   *ratelimit.Limiter
	Auditor   *audit.Auditor
}

// CreateInput for a doctor creating an invite code.
type CreateInput struct {
	HospitalCode string
	CreatedBy    string
	ExpiresAt    time.Time // zero value = now + 7 days
	MaxUses      *int      // nil = unlimited
	IP           string
	UserAgent    string
}

// Create generates and persists a new invite code. Generation is the scarce
// operation: the rate gate fails closed when limiter storage is down.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.InviteCode, error) {
	if s.Limiter != nil {
		rl, _ := s.Limiter.Check(ctx, in.CreatedBy, models.ActionCodeGeneration)
		if !rl.Allowed {
			s.logGeneration(ctx, in, "", false, map[string]interface{}{"reason": "rate_limited"})
			return nil, ErrRateLimited
		}
	}

	var hosp models.Hospital
	err := s.DB.WithContext(ctx).Where("code = ?", in.HospitalCode).First(&hosp).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrHospitalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !hosp.IsActive {
		return nil, ErrHospitalInactive
	}

	code, err := s.Generator.InviteCode(ctx)
	if err != nil {
		s.logGeneration(ctx, in, "", false, map[string]interface{}{"reason": "generation_failed"})
		return nil, err
	}

	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultInviteExpiry)
	}

	inv := &models.InviteCode{
		Code:         code,
		HospitalCode: hosp.Code,
		CreatedBy:    in.CreatedBy,
		ExpiresAt:    expiresAt,
		MaxUses:      in.MaxUses,
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		s.logGeneration(ctx, in, code, false, map[string]interface{}{"reason": "persist_failed"})
		return nil, err
	}

	s.logGeneration(ctx, in, code, true, nil)
	return inv, nil
}

// RedeemInput identifies the redeeming customer.
type RedeemInput struct {
	CustomerID string
	IP         string
	UserAgent  string
}

// Redeem validates the code and, on success, consumes one use. The increment
// re-checks the cap inside a single conditional UPDATE so two concurrent
// redemptions of the last slot cannot both land; the usage record is written
// in the same transaction.
func (s *Service) Redeem(ctx context.Context, code string, in RedeemInput) Result {
	vres := s.Validate(ctx, code, Context{IP: in.IP, UserAgent: in.UserAgent, UserID: in.CustomerID})
	if !vres.IsValid {
		return vres
	}

	code = normalizeCode(code)
	now := time.Now()
	var usage models.InviteCodeUsage

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.InviteCode
		if err := tx.Where("code = ?", code).First(&inv).Error; err != nil {
			return err
		}

		res := tx.Model(&models.InviteCode{}).
			Where("invite_id = ? AND is_active = ?", inv.InviteID, true).
			Where("expires_at > ?", now).
			Where("max_uses IS NULL OR current_uses < max_uses").
			UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errSlotTaken
		}

		usage = models.InviteCodeUsage{
			InviteCodeID: inv.InviteID,
			CustomerID:   in.CustomerID,
			UsedAt:       now.UTC(),
			IPAddress:    in.IP,
			UserAgent:    in.UserAgent,
		}
		return tx.Create(&usage).Error
	})

	if err != nil {
		var ec ErrorCode
		if errors.Is(err, errSlotTaken) {
			ec = CodeMaxUsesExceeded
		} else {
			log.Error().Err(err).Str("code", code).Msg("redemption failed")
			ec = CodeSystemError
		}
		s.logUsage(ctx, code, vres, in, false, map[string]interface{}{"error_code": string(ec)})
		return failure(ec)
	}

	s.logUsage(ctx, code, vres, in, true, map[string]interface{}{"usage_id": usage.UsageID.String()})

	// Reflect the consumed slot in the returned snapshot.
	if vres.Code != nil && vres.Code.RemainingUses != nil {
		left := *vres.Code.RemainingUses - 1
		if left < 0 {
			left = 0
		}
		vres.Code.RemainingUses = &left
	}
	return vres
}

// Deactivate turns the code off permanently. There is no reactivation path.
func (s *Service) Deactivate(ctx context.Context, code, actorID, ip, userAgent string) (*models.InviteCode, error) {
	code = normalizeCode(code)

	res := s.DB.WithContext(ctx).Model(&models.InviteCode{}).
		Where("code = ? AND is_active = ?", code, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInviteNotFound
	}

	var inv models.InviteCode
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&inv).Error; err != nil {
		return nil, err
	}

	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionAdminAccess,
		UserID:       actorID,
		HospitalCode: inv.HospitalCode,
		InviteCode:   code,
		IP:           ip,
		UserAgent:    userAgent,
		Success:      true,
		Details:      map[string]interface{}{"operation": "deactivate_invite"},
	})
	return &inv, nil
}

// ListByHospital returns a hospital's invite codes with redemption history.
func (s *Service) ListByHospital(ctx context.Context, hospitalCode string) ([]models.InviteCode, error) {
	var invs []models.InviteCode
	err := s.DB.WithContext(ctx).
		Preload("Usages").
		Where("hospital_code = ?", hospitalCode).
		Order("created_at DESC").
		Find(&invs).Error
	return invs, err
}

func (s *Service) logGeneration(ctx context.Context, in CreateInput, code string, success bool, details map[string]interface{}) {
	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionCodeGeneration,
		UserID:       in.CreatedBy,
		HospitalCode: in.HospitalCode,
		InviteCode:   code,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Success:      success,
		Details:      details,
	})
}

func (s *Service) logUsage(ctx context.Context, code string, vres Result, in RedeemInput, success bool, details map[string]interface{}) {
	hospitalCode := ""
	if vres.Hospital != nil {
		hospitalCode = vres.Hospital.Code
	}
	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionCodeUsage,
		UserID:       in.CustomerID,
		HospitalCode: hospitalCode,
		InviteCode:   code,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Success:      success,
		Details:      details,
	})
}
