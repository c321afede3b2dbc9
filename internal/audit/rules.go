package audit

import (
	"context"
	"time"

	"obcare-backend/internal/models"

	"github.com/rs/zerolog/log"
)

type sourceCount struct {
	IPAddress string
	Hits      int
}

// EvaluateAlerts runs the rule engine over audit entries inside the configured
// window and persists any newly fired alerts. A (type, source) pair with an
// open alert inside the cooldown does not fire again, so ongoing patterns do
// not spam duplicates.
func (a *Auditor) EvaluateAlerts(ctx context.Context) ([]models.SecurityAlert, error) {
	since := time.Now().UTC().Add(-a.Rules.Window)
	var created []models.SecurityAlert

	// MULTIPLE_FAILED_CODES: repeated failed validations from one IP.
	var failed []sourceCount
	err := a.DB.WithContext(ctx).Model(&models.AuditLog{}).
		Select("ip_address, COUNT(*) as hits").
		Where("action = ? AND success = ? AND timestamp >= ? AND ip_address <> ''",
			models.ActionCodeValidation, false, since).
		Group("ip_address").
		Having("COUNT(*) >= ?", a.Rules.FailedCodesMin).
		Scan(&failed).Error
	if err != nil {
		return created, err
	}
	for _, row := range failed {
		created = a.fire(ctx, created, models.SecurityAlert{
			Type:     models.AlertMultipleFailedCodes,
			Severity: models.SeverityMedium,
			Source:   row.IPAddress,
			Details:  marshalDetails(map[string]interface{}{"failed_validations": row.Hits}),
		})
	}

	// RAPID_SIGNUP_ATTEMPTS: signup bursts from one IP.
	var signups []sourceCount
	err = a.DB.WithContext(ctx).Model(&models.AuditLog{}).
		Select("ip_address, COUNT(*) as hits").
		Where("action = ? AND timestamp >= ? AND ip_address <> ''", models.ActionSignup, since).
		Group("ip_address").
		Having("COUNT(*) >= ?", a.Rules.RapidSignupMin).
		Scan(&signups).Error
	if err != nil {
		return created, err
	}
	for _, row := range signups {
		created = a.fire(ctx, created, models.SecurityAlert{
			Type:     models.AlertRapidSignupAttempts,
			Severity: models.SeverityMedium,
			Source:   row.IPAddress,
			Details:  marshalDetails(map[string]interface{}{"signup_attempts": row.Hits}),
		})
	}

	// SUSPICIOUS_IP: limiter-escalated IP with at least one failed security action.
	if a.Suspicious != nil {
		keys, err := a.Suspicious.SuspiciousKeys(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("suspicious set unavailable, skipping SUSPICIOUS_IP rule")
		} else {
			for _, ip := range keys {
				var n int64
				if err := a.DB.WithContext(ctx).Model(&models.AuditLog{}).
					Where("ip_address = ? AND success = ? AND timestamp >= ?", ip, false, since).
					Count(&n).Error; err != nil {
					return created, err
				}
				if n == 0 {
					continue
				}
				created = a.fire(ctx, created, models.SecurityAlert{
					Type:     models.AlertSuspiciousIP,
					Severity: models.SeverityHigh,
					Source:   ip,
					Details:  marshalDetails(map[string]interface{}{"failed_actions": n}),
				})
			}
		}
	}

	// UNUSUAL_PATTERN: one IP probing codes across many distinct hospitals.
	var probes []sourceCount
	err = a.DB.WithContext(ctx).Model(&models.AuditLog{}).
		Select("ip_address, COUNT(DISTINCT hospital_code) as hits").
		Where("action = ? AND timestamp >= ? AND hospital_code <> '' AND ip_address <> ''",
			models.ActionCodeValidation, since).
		Group("ip_address").
		Having("COUNT(DISTINCT hospital_code) >= ?", a.Rules.EnumerationMin).
		Scan(&probes).Error
	if err != nil {
		return created, err
	}
	for _, row := range probes {
		created = a.fire(ctx, created, models.SecurityAlert{
			Type:     models.AlertUnusualPattern,
			Severity: models.SeverityHigh,
			Source:   row.IPAddress,
			Details:  marshalDetails(map[string]interface{}{"distinct_hospitals": row.Hits}),
		})
	}

	return created, nil
}

// fire persists the alert unless an open one for (type, source) exists within
// the cooldown.
func (a *Auditor) fire(ctx context.Context, acc []models.SecurityAlert, alert models.SecurityAlert) []models.SecurityAlert {
	cutoff := time.Now().UTC().Add(-a.Rules.Cooldown)
	var n int64
	if err := a.DB.WithContext(ctx).Model(&models.SecurityAlert{}).
		Where("type = ? AND source = ? AND resolved = ? AND created_at >= ?",
			alert.Type, alert.Source, false, cutoff).
		Count(&n).Error; err != nil {
		log.Error().Err(err).Str("type", alert.Type).Msg("alert dedupe check failed")
		return acc
	}
	if n > 0 {
		return acc
	}
	if err := a.DB.WithContext(ctx).Create(&alert).Error; err != nil {
		log.Error().Err(err).Str("type", alert.Type).Msg("alert write failed")
		return acc
	}
	log.Info().Str("type", alert.Type).Str("severity", alert.Severity).Str("source", alert.Source).Msg("security alert fired")
	return append(acc, alert)
}
