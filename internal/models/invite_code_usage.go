package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteCodeUsage is one successful redemption. Immutable once created.
type InviteCodeUsage struct {
	UsageID      uuid.UUID `gorm:"column:usage_id;type:uuid;primaryKey" json:"usage_id"`
	InviteCodeID uuid.UUID `gorm:"column:invite_code_id;type:uuid;not null;index" json:"invite_code_id"`
	CustomerID   string    `gorm:"column:customer_id;not null" json:"customer_id"`
	UsedAt       time.Time `gorm:"column:used_at;not null" json:"used_at"`
	IPAddress    string    `gorm:"column:ip_address" json:"ip_address"`
	UserAgent    string    `gorm:"column:user_agent" json:"user_agent"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (InviteCodeUsage) TableName() string {
	return "InviteCodeUsages"
}

func (u *InviteCodeUsage) BeforeCreate(tx *gorm.DB) error {
	if u.UsageID == uuid.Nil {
		u.UsageID = uuid.New()
	}
	return nil
}
