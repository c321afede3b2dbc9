package hospitals

import (
	"context"
	"errors"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/codes"
	"obcare-backend/internal/models"
	"obcare-backend/internal/ratelimit"

	"gorm.io/gorm"
)

var (
	ErrHospitalNotFound = errors.New("Hospital not found")
	ErrNameRequired     = errors.New("Hospital name is required")
	ErrRateLimited      = errors.New("Code generation rate limit exceeded")
)

type Service struct {
	DB        *gorm.DB
	Generator *codes.Generator
	Limiter   *ratelimit.Limiter
	Auditor   *audit.Auditor
}

type OnboardInput struct {
	Name           string
	Type           string
	Region         string
	Address        string
	Phone          string
	RegistrationNo string
	LicenseNo      string
	ActorID        string
	IP             string
	UserAgent      string
}

// Onboard assigns the next hospital code for (region, type) and creates the
// tenant. Code generation fails closed when the limiter is unreachable.
func (s *Service) Onboard(ctx context.Context, in OnboardInput) (*models.Hospital, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if s.Limiter != nil {
		rl, _ := s.Limiter.Check(ctx, in.ActorID, models.ActionCodeGeneration)
		if !rl.Allowed {
			s.logGeneration(ctx, in, "", false, map[string]interface{}{"reason": "rate_limited"})
			return nil, ErrRateLimited
		}
	}

	code, err := s.Generator.HospitalCode(ctx, in.Region, in.Type)
	if err != nil {
		s.logGeneration(ctx, in, "", false, map[string]interface{}{"reason": err.Error()})
		return nil, err
	}

	hosp := &models.Hospital{
		Code:           code,
		Name:           in.Name,
		Type:           in.Type,
		Region:         in.Region,
		Address:        in.Address,
		Phone:          in.Phone,
		RegistrationNo: in.RegistrationNo,
		LicenseNo:      in.LicenseNo,
		IsActive:       true,
	}
	if err := s.DB.WithContext(ctx).Create(hosp).Error; err != nil {
		s.logGeneration(ctx, in, code, false, map[string]interface{}{"reason": "persist_failed"})
		return nil, err
	}

	s.logGeneration(ctx, in, code, true, nil)
	return hosp, nil
}

// Deactivate suspends a hospital. The row stays; all invite codes under it
// stop validating immediately via the hospital-active check.
func (s *Service) Deactivate(ctx context.Context, code, actorID, ip, userAgent string) (*models.Hospital, error) {
	res := s.DB.WithContext(ctx).Model(&models.Hospital{}).
		Where("code = ? AND is_active = ?", code, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrHospitalNotFound
	}

	var hosp models.Hospital
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&hosp).Error; err != nil {
		return nil, err
	}

	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionAdminAccess,
		UserID:       actorID,
		HospitalCode: code,
		IP:           ip,
		UserAgent:    userAgent,
		Success:      true,
		Details:      map[string]interface{}{"operation": "deactivate_hospital"},
	})
	return &hosp, nil
}

func (s *Service) Get(ctx context.Context, code string) (*models.Hospital, error) {
	var hosp models.Hospital
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&hosp).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrHospitalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hosp, nil
}

func (s *Service) List(ctx context.Context) ([]models.Hospital, error) {
	var hospitals []models.Hospital
	err := s.DB.WithContext(ctx).Order("code ASC").Find(&hospitals).Error
	return hospitals, err
}

func (s *Service) logGeneration(ctx context.Context, in OnboardInput, code string, success bool, details map[string]interface{}) {
	s.Auditor.Log(ctx, audit.Entry{
		Action:       models.ActionCodeGeneration,
		UserID:       in.ActorID,
		HospitalCode: code,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Success:      success,
		Details:      details,
	})
}
