package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hospital types (enum_Hospitals_type).
const (
	HospitalTypeClinic         = "clinic"
	HospitalTypeOrientalClinic = "oriental_clinic"
	HospitalTypeHospital       = "hospital"
)

// Hospital is one clinic/hospital tenant. Code is assigned at onboarding and
// never changes; deactivation is a soft state, rows are never deleted.
type Hospital struct {
	HospitalID     uuid.UUID      `gorm:"column:hospital_id;type:uuid;primaryKey" json:"hospital_id"`
	Code           string         `gorm:"column:code;type:varchar(32);not null;uniqueIndex" json:"code"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Type           string         `gorm:"column:type;not null" json:"type"`
	Region         string         `gorm:"column:region;not null" json:"region"`
	Address        string         `gorm:"column:address" json:"address"`
	Phone          string         `gorm:"column:phone" json:"phone"`
	RegistrationNo string         `gorm:"column:registration_no" json:"registration_no"`
	LicenseNo      string         `gorm:"column:license_no" json:"license_no"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Hospital) TableName() string {
	return "Hospitals"
}

func (h *Hospital) BeforeCreate(tx *gorm.DB) error {
	if h.HospitalID == uuid.Nil {
		h.HospitalID = uuid.New()
	}
	return nil
}
