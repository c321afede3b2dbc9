package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"obcare-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("Alert not found or already resolved")

const writeTimeout = 2 * time.Second

// Entry is one security-relevant action to record.
type Entry struct {
	Action       string
	UserID       string
	HospitalCode string
	InviteCode   string
	IP           string
	UserAgent    string
	Success      bool
	Details      map[string]interface{}
}

// SuspiciousSource lists keys the rate limiter has escalated; satisfied by
// *ratelimit.Limiter.
type SuspiciousSource interface {
	SuspiciousKeys(ctx context.Context) ([]string, error)
}

// RuleConfig parameterizes the alert rules.
type RuleConfig struct {
	FailedCodesMin int           // failed validations from one IP
	RapidSignupMin int           // signups from one IP
	EnumerationMin int           // distinct hospital codes from one IP
	Window         time.Duration // lookback
	Cooldown       time.Duration // one open alert per (type, source) within this period
}

// Auditor appends audit-log entries and derives security alerts from them.
// Log never fails the caller: a write error is reported on the process log and
// counted, nothing more.
type Auditor struct {
	DB         *gorm.DB
	Suspicious SuspiciousSource
	Rules      RuleConfig

	dropped atomic.Int64
}

// Log appends one entry. Failures are swallowed: audit logging must not block
// the operation being audited.
func (a *Auditor) Log(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	rec := models.AuditLog{
		Action:       e.Action,
		UserID:       e.UserID,
		HospitalCode: e.HospitalCode,
		InviteCode:   e.InviteCode,
		IPAddress:    e.IP,
		UserAgent:    e.UserAgent,
		Success:      e.Success,
		Details:      marshalDetails(e.Details),
		Timestamp:    time.Now().UTC(),
	}
	if err := a.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		a.dropped.Add(1)
		log.Error().Err(err).Str("action", e.Action).Str("ip", e.IP).Msg("audit log write failed")
	}
}

// Dropped returns how many entries were lost to write failures since start.
func (a *Auditor) Dropped() int64 {
	return a.dropped.Load()
}

// Recent returns the newest entries, newest first.
func (a *Auditor) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditLog
	err := a.DB.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Unresolved returns open alerts, newest first.
func (a *Auditor) Unresolved(ctx context.Context) ([]models.SecurityAlert, error) {
	var alerts []models.SecurityAlert
	err := a.DB.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// ResolveAlert marks an alert resolved. One-way: resolving twice is an error.
func (a *Auditor) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	now := time.Now().UTC()
	res := a.DB.WithContext(ctx).Model(&models.SecurityAlert{}).
		Where("alert_id = ? AND resolved = ?", alertID, false).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func marshalDetails(details map[string]interface{}) datatypes.JSON {
	if len(details) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	b, err := json.Marshal(details)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
