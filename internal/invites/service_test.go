package invites

import (
	"context"
	"testing"
	"time"

	"obcare-backend/internal/models"
	"obcare-backend/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_PersistsCode(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)

	inv, err := s.Create(context.Background(), CreateInput{
		HospitalCode: "OB-SEOUL-CLINIC-001",
		CreatedBy:    "doctor-1",
		MaxUses:      intPtr(3),
		IP:           "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Code)
	assert.True(t, inv.IsActive)
	assert.Equal(t, 0, inv.CurrentUses)

	// Round trip: the freshly minted code validates.
	res := s.Validate(context.Background(), inv.Code, validCtx())
	require.True(t, res.IsValid)
	require.NotNil(t, res.Code.RemainingUses)
	assert.Equal(t, 3, *res.Code.RemainingUses)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND success = ?", models.ActionCodeGeneration, true).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCreate_DefaultExpirySevenDays(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)

	inv, err := s.Create(context.Background(), CreateInput{
		HospitalCode: "OB-SEOUL-CLINIC-001",
		CreatedBy:    "doctor-1",
	})
	require.NoError(t, err)
	assert.Nil(t, inv.MaxUses)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
}

func TestCreate_HospitalMissing(t *testing.T) {
	s, _ := setupInvitesTest(t)

	_, err := s.Create(context.Background(), CreateInput{
		HospitalCode: "OB-SEOUL-CLINIC-404",
		CreatedBy:    "doctor-1",
	})
	assert.Equal(t, ErrHospitalNotFound, err)
}

func TestCreate_HospitalInactive(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", false)

	_, err := s.Create(context.Background(), CreateInput{
		HospitalCode: "OB-SEOUL-CLINIC-001",
		CreatedBy:    "doctor-1",
	})
	assert.Equal(t, ErrHospitalInactive, err)
}

func TestCreate_RateLimited(t *testing.T) {
	s, db := setupInvitesTest(t)
	withLimiter(t, s, map[string]ratelimit.Rule{
		models.ActionCodeGeneration: {Limit: 1, Window: time.Hour, Cooldown: time.Hour, FailClosed: true},
	})
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)

	in := CreateInput{HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1"}
	_, err := s.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = s.Create(context.Background(), in)
	assert.Equal(t, ErrRateLimited, err)
}

func TestCreate_GenerationFailsClosedWhenLimiterDown(t *testing.T) {
	s, db := setupInvitesTest(t)
	mr := withLimiter(t, s, map[string]ratelimit.Rule{
		models.ActionCodeGeneration: {Limit: 10, Window: time.Hour, Cooldown: time.Hour, FailClosed: true},
	})
	mr.Close()
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)

	_, err := s.Create(context.Background(), CreateInput{
		HospitalCode: "OB-SEOUL-CLINIC-001",
		CreatedBy:    "doctor-1",
	})
	assert.Equal(t, ErrRateLimited, err)
}

func TestRedeem_ConsumesOneUse(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), MaxUses: intPtr(3), IsActive: true,
	})

	res := s.Redeem(context.Background(), "INV-TEST-001", RedeemInput{
		CustomerID: "customer-1", IP: "10.0.0.1", UserAgent: "test-agent",
	})
	require.True(t, res.IsValid)
	require.NotNil(t, res.Code.RemainingUses)
	assert.Equal(t, 2, *res.Code.RemainingUses)

	var inv models.InviteCode
	require.NoError(t, db.Preload("Usages").Where("code = ?", "INV-TEST-001").First(&inv).Error)
	assert.Equal(t, 1, inv.CurrentUses)
	require.Len(t, inv.Usages, 1)
	assert.Equal(t, "customer-1", inv.Usages[0].CustomerID)
	assert.Equal(t, "10.0.0.1", inv.Usages[0].IPAddress)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND success = ?", models.ActionCodeUsage, true).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRedeem_LastSlotOnlyOnce(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), MaxUses: intPtr(1), IsActive: true,
	})
	ctx := context.Background()

	res := s.Redeem(ctx, "INV-TEST-001", RedeemInput{CustomerID: "customer-1", IP: "10.0.0.1"})
	require.True(t, res.IsValid)
	require.NotNil(t, res.Code.RemainingUses)
	assert.Equal(t, 0, *res.Code.RemainingUses)

	res = s.Redeem(ctx, "INV-TEST-001", RedeemInput{CustomerID: "customer-2", IP: "10.0.0.2"})
	assert.False(t, res.IsValid)
	assert.Equal(t, CodeMaxUsesExceeded, res.ErrorCode)

	// Exactly one use landed.
	var inv models.InviteCode
	require.NoError(t, db.Where("code = ?", "INV-TEST-001").First(&inv).Error)
	assert.Equal(t, 1, inv.CurrentUses)
	var usages int64
	require.NoError(t, db.Model(&models.InviteCodeUsage{}).Count(&usages).Error)
	assert.Equal(t, int64(1), usages)
}

func TestRedeem_UnlimitedCode(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := s.Redeem(ctx, "INV-TEST-001", RedeemInput{CustomerID: "customer-1", IP: "10.0.0.1"})
		require.True(t, res.IsValid)
		assert.Nil(t, res.Code.RemainingUses)
	}

	var inv models.InviteCode
	require.NoError(t, db.Where("code = ?", "INV-TEST-001").First(&inv).Error)
	assert.Equal(t, 5, inv.CurrentUses)
}

func TestRedeem_InvalidCodeDoesNotTouchCounters(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(-time.Minute), IsActive: true,
	})

	res := s.Redeem(context.Background(), "INV-TEST-001", RedeemInput{CustomerID: "customer-1", IP: "10.0.0.1"})
	assert.False(t, res.IsValid)
	assert.Equal(t, CodeExpired, res.ErrorCode)

	var inv models.InviteCode
	require.NoError(t, db.Where("code = ?", "INV-TEST-001").First(&inv).Error)
	assert.Equal(t, 0, inv.CurrentUses)
	var usages int64
	require.NoError(t, db.Model(&models.InviteCodeUsage{}).Count(&usages).Error)
	assert.Equal(t, int64(0), usages)
}

func TestDeactivate_Terminal(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	})
	ctx := context.Background()

	inv, err := s.Deactivate(ctx, "INV-TEST-001", "admin-1", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.False(t, inv.IsActive)

	res := s.Validate(ctx, "INV-TEST-001", validCtx())
	assert.Equal(t, CodeAlreadyUsed, res.ErrorCode)

	// No reactivation path: a second deactivate finds nothing active.
	_, err = s.Deactivate(ctx, "INV-TEST-001", "admin-1", "10.0.0.1", "test-agent")
	assert.Equal(t, ErrInviteNotFound, err)
}

func TestListByHospital(t *testing.T) {
	s, db := setupInvitesTest(t)
	seedHospital(t, db, "OB-SEOUL-CLINIC-001", true)
	seedHospital(t, db, "OB-SEOUL-CLINIC-002", true)
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-001", HospitalCode: "OB-SEOUL-CLINIC-001", CreatedBy: "doctor-1",
		ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	})
	seedInvite(t, db, &models.InviteCode{
		Code: "INV-TEST-002", HospitalCode: "OB-SEOUL-CLINIC-002", CreatedBy: "doctor-2",
		ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	})
	ctx := context.Background()

	res := s.Redeem(ctx, "INV-TEST-001", RedeemInput{CustomerID: "customer-1", IP: "10.0.0.1"})
	require.True(t, res.IsValid)

	invs, err := s.ListByHospital(ctx, "OB-SEOUL-CLINIC-001")
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "INV-TEST-001", invs[0].Code)
	require.Len(t, invs[0].Usages, 1)
	assert.Equal(t, "customer-1", invs[0].Usages[0].CustomerID)
}
