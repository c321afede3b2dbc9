package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions (enum_AuditLogs_action). These double as rate-limiter action keys.
const (
	ActionSignup         = "signup"
	ActionCodeGeneration = "code_generation"
	ActionCodeUsage      = "code_usage"
	ActionAdminAccess    = "admin_access"
	ActionCodeValidation = "code_validation"
)

// AuditLog is an append-only record of a security-relevant action. No update
// or delete path exists anywhere in the codebase.
type AuditLog struct {
	LogID        uuid.UUID      `gorm:"column:log_id;type:uuid;primaryKey" json:"log_id"`
	Action       string         `gorm:"column:action;not null;index" json:"action"`
	UserID       string         `gorm:"column:user_id;index" json:"user_id"`
	HospitalCode string         `gorm:"column:hospital_code;index" json:"hospital_code"`
	InviteCode   string         `gorm:"column:invite_code" json:"invite_code"`
	IPAddress    string         `gorm:"column:ip_address;index" json:"ip_address"`
	UserAgent    string         `gorm:"column:user_agent" json:"user_agent"`
	Details      datatypes.JSON `gorm:"column:details" json:"details"`
	Success      bool           `gorm:"column:success;not null" json:"success"`
	Timestamp    time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return "AuditLogs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.LogID == uuid.Nil {
		a.LogID = uuid.New()
	}
	return nil
}
