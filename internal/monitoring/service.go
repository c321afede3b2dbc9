package monitoring

import (
	"context"
	"time"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/models"
	"obcare-backend/internal/ratelimit"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Risk score weights and level bands.
const (
	weightFailedValidation = 2
	weightSuspiciousKey    = 10
	weightRateViolation    = 5
	weightOpenHighAlert    = 15

	riskWindow = time.Hour
)

type RiskScore struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// Snapshot is the read-only admin view over the security subsystem.
type Snapshot struct {
	RateLimit      ratelimit.Stats        `json:"rate_limit"`
	BlockedKeys    []string               `json:"blocked_keys"`
	SuspiciousKeys []string               `json:"suspicious_keys"`
	RecentAudit    []models.AuditLog      `json:"recent_audit"`
	OpenAlerts     []models.SecurityAlert `json:"open_alerts"`
	Risk           RiskScore              `json:"risk"`
}

type Service struct {
	DB      *gorm.DB
	Limiter *ratelimit.Limiter
	Auditor *audit.Auditor
}

// Collect evaluates alert rules first (visibility here is poll-driven), then
// assembles the snapshot. Limiter reads are best-effort: if Redis is down the
// snapshot still renders with empty limiter sections.
func (s *Service) Collect(ctx context.Context) (*Snapshot, error) {
	if _, err := s.Auditor.EvaluateAlerts(ctx); err != nil {
		log.Warn().Err(err).Msg("alert evaluation failed during snapshot")
	}

	snap := &Snapshot{}

	stats, err := s.Limiter.GetStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter stats unavailable")
	}
	snap.RateLimit = stats
	snap.BlockedKeys, _ = s.Limiter.BlockedKeys(ctx)
	snap.SuspiciousKeys, _ = s.Limiter.SuspiciousKeys(ctx)

	snap.RecentAudit, err = s.Auditor.Recent(ctx, 50)
	if err != nil {
		return nil, err
	}
	snap.OpenAlerts, err = s.Auditor.Unresolved(ctx)
	if err != nil {
		return nil, err
	}

	snap.Risk = s.riskScore(ctx, stats, snap.SuspiciousKeys, snap.OpenAlerts)
	return snap, nil
}

// riskScore is the weighted, clamped [0,100] triage aggregate.
func (s *Service) riskScore(ctx context.Context, stats ratelimit.Stats, suspicious []string, open []models.SecurityAlert) RiskScore {
	var failed int64
	since := time.Now().UTC().Add(-riskWindow)
	if err := s.DB.WithContext(ctx).Model(&models.AuditLog{}).
		Where("action = ? AND success = ? AND timestamp >= ?", models.ActionCodeValidation, false, since).
		Count(&failed).Error; err != nil {
		log.Warn().Err(err).Msg("failed-validation count unavailable for risk score")
	}

	highOpen := 0
	for _, a := range open {
		if a.Severity == models.SeverityHigh {
			highOpen++
		}
	}

	score := int(failed)*weightFailedValidation +
		len(suspicious)*weightSuspiciousKey +
		int(stats.Violations)*weightRateViolation +
		highOpen*weightOpenHighAlert
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return RiskScore{Score: score, Level: riskLevel(score)}
}

func riskLevel(score int) string {
	switch {
	case score < 25:
		return "low"
	case score < 50:
		return "medium"
	case score < 75:
		return "high"
	default:
		return "critical"
	}
}
