package codes

import (
	"context"
	"testing"
	"time"

	"obcare-backend/internal/models"
	"obcare-backend/internal/pkg/validation"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupGenerator(t *testing.T) (*Generator, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Hospital{}, &models.InviteCode{}))
	return &Generator{DB: db}, db
}

func TestHospitalCode_FirstInSequence(t *testing.T) {
	g, _ := setupGenerator(t)

	code, err := g.HospitalCode(context.Background(), "SEOUL", models.HospitalTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-SEOUL-CLINIC-001", code)
	assert.True(t, validation.IsValidHospitalCode(code))
}

func TestHospitalCode_SequenceAdvances(t *testing.T) {
	g, db := setupGenerator(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Hospital{
		Code: "OB-SEOUL-CLINIC-007", Name: "Seven", Type: models.HospitalTypeClinic, Region: "SEOUL",
	}).Error)

	code, err := g.HospitalCode(ctx, "SEOUL", models.HospitalTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-SEOUL-CLINIC-008", code)
}

func TestHospitalCode_SequencesPerRegionAndType(t *testing.T) {
	g, db := setupGenerator(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Hospital{
		Code: "OB-SEOUL-CLINIC-003", Name: "A", Type: models.HospitalTypeClinic, Region: "SEOUL",
	}).Error)

	// (region, type) pairs count independently.
	code, err := g.HospitalCode(ctx, "BUSAN", models.HospitalTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-BUSAN-CLINIC-001", code)

	code, err = g.HospitalCode(ctx, "SEOUL", models.HospitalTypeOrientalClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-SEOUL-ORIENTAL-001", code)

	code, err = g.HospitalCode(ctx, "SEOUL", models.HospitalTypeHospital)
	require.NoError(t, err)
	assert.Equal(t, "OB-SEOUL-HOSPITAL-001", code)
}

func TestHospitalCode_CountsSoftDeletedRows(t *testing.T) {
	g, db := setupGenerator(t)
	ctx := context.Background()

	hosp := models.Hospital{Code: "OB-JEJU-CLINIC-001", Name: "Gone", Type: models.HospitalTypeClinic, Region: "JEJU"}
	require.NoError(t, db.Create(&hosp).Error)
	require.NoError(t, db.Delete(&hosp).Error)

	// Deleted tenants keep their code; the sequence never reissues it.
	code, err := g.HospitalCode(ctx, "JEJU", models.HospitalTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-JEJU-CLINIC-002", code)
}

func TestHospitalCode_RegionNormalized(t *testing.T) {
	g, _ := setupGenerator(t)

	code, err := g.HospitalCode(context.Background(), "  seoul ", models.HospitalTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, "OB-SEOUL-CLINIC-001", code)
}

func TestHospitalCode_UnknownRegion(t *testing.T) {
	g, _ := setupGenerator(t)

	_, err := g.HospitalCode(context.Background(), "ATLANTIS", models.HospitalTypeClinic)
	assert.Equal(t, ErrUnknownRegion, err)
}

func TestHospitalCode_UnknownType(t *testing.T) {
	g, _ := setupGenerator(t)

	_, err := g.HospitalCode(context.Background(), "SEOUL", "veterinary")
	assert.Equal(t, ErrUnknownType, err)
}

func TestInviteCode_FormatAndUniqueness(t *testing.T) {
	g, _ := setupGenerator(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := g.InviteCode(ctx)
		require.NoError(t, err)
		assert.True(t, validation.IsValidInviteCode(code), code)
		assert.Regexp(t, `^INV-[A-Z2-7]{26}$`, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestInviteCode_SkipsPersistedCollision(t *testing.T) {
	g, db := setupGenerator(t)
	ctx := context.Background()

	code, err := g.InviteCode(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.InviteCode{
		Code: code, HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	}).Error)

	next, err := g.InviteCode(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, code, next)
}
