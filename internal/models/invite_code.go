package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteCode is a redeemable signup token scoped to one hospital. MaxUses nil
// means unlimited. CurrentUses only moves up, via the conditional redemption
// update; IsActive=false is terminal.
type InviteCode struct {
	InviteID     uuid.UUID         `gorm:"column:invite_id;type:uuid;primaryKey" json:"invite_id"`
	Code         string            `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	HospitalCode string            `gorm:"column:hospital_code;not null;index" json:"hospital_code"`
	CreatedBy    string            `gorm:"column:created_by;not null" json:"created_by"`
	ExpiresAt    time.Time         `gorm:"column:expires_at;not null" json:"expires_at"`
	MaxUses      *int              `gorm:"column:max_uses" json:"max_uses"`
	CurrentUses  int               `gorm:"column:current_uses;not null;default:0" json:"current_uses"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Usages       []InviteCodeUsage `gorm:"foreignKey:InviteCodeID;references:InviteID" json:"usages,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (InviteCode) TableName() string {
	return "InviteCodes"
}

func (i *InviteCode) BeforeCreate(tx *gorm.DB) error {
	if i.InviteID == uuid.Nil {
		i.InviteID = uuid.New()
	}
	return nil
}

// Expired reports whether the code is past its expiry at the given instant.
func (i *InviteCode) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Exhausted reports whether the usage cap has been reached (never for unlimited codes).
func (i *InviteCode) Exhausted() bool {
	return i.MaxUses != nil && i.CurrentUses >= *i.MaxUses
}

// RemainingUses returns uses left, or nil for unlimited codes.
func (i *InviteCode) RemainingUses() *int {
	if i.MaxUses == nil {
		return nil
	}
	left := *i.MaxUses - i.CurrentUses
	if left < 0 {
		left = 0
	}
	return &left
}
