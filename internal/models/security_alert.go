package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alert types (enum_SecurityAlerts_type).
const (
	AlertMultipleFailedCodes = "MULTIPLE_FAILED_CODES"
	AlertRapidSignupAttempts = "RAPID_SIGNUP_ATTEMPTS"
	AlertSuspiciousIP        = "SUSPICIOUS_IP"
	AlertUnusualPattern      = "UNUSUAL_PATTERN"
)

// Alert severities.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// SecurityAlert is a derived signal from the audit-log rule engine. Source is
// the IP or user id the pattern was keyed on. Resolved is a one-way transition.
type SecurityAlert struct {
	AlertID      uuid.UUID      `gorm:"column:alert_id;type:uuid;primaryKey" json:"alert_id"`
	Type         string         `gorm:"column:type;not null;index" json:"type"`
	Severity     string         `gorm:"column:severity;not null" json:"severity"`
	Source       string         `gorm:"column:source;not null;index" json:"source"`
	HospitalCode string         `gorm:"column:hospital_code" json:"hospital_code"`
	UserID       string         `gorm:"column:user_id" json:"user_id"`
	Details      datatypes.JSON `gorm:"column:details" json:"details"`
	Resolved     bool           `gorm:"column:resolved;not null;default:false;index" json:"resolved"`
	ResolvedAt   *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (SecurityAlert) TableName() string {
	return "SecurityAlerts"
}

func (a *SecurityAlert) BeforeCreate(tx *gorm.DB) error {
	if a.AlertID == uuid.Nil {
		a.AlertID = uuid.New()
	}
	return nil
}
