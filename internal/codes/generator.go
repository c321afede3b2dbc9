package codes

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"obcare-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrGenerationFailed = errors.New("Code generation failed after retries")
	ErrUnknownRegion    = errors.New("Unknown region")
	ErrUnknownType      = errors.New("Unknown hospital type")
)

const (
	codePrefix       = "OB"
	invitePrefix     = "INV-"
	maxAttempts      = 5
	inviteTokenBytes = 16 // 128 bits of entropy
)

// Regions is the set of allowed region segments (Korean administrative regions).
var Regions = []string{
	"SEOUL", "BUSAN", "DAEGU", "INCHEON", "GWANGJU", "DAEJEON", "ULSAN", "SEJONG",
	"GYEONGGI", "GANGWON", "CHUNGBUK", "CHUNGNAM", "JEONBUK", "JEONNAM",
	"GYEONGBUK", "GYEONGNAM", "JEJU",
}

// typeSegments maps hospital type enum values to their code segment.
var typeSegments = map[string]string{
	models.HospitalTypeClinic:         "CLINIC",
	models.HospitalTypeOrientalClinic: "ORIENTAL",
	models.HospitalTypeHospital:       "HOSPITAL",
}

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generator produces hospital and invite codes. It only reads persisted state
// for uniqueness checks; the caller persists the resulting record.
type Generator struct {
	DB *gorm.DB
}

// HospitalCode returns the next OB-<REGION>-<TYPE>-<SEQ> code for the
// (region, type) sequence. The sequence is derived from persisted codes and
// each candidate is re-checked for uniqueness, so a concurrent winner just
// pushes this caller to the next number. Bounded retries, then ErrGenerationFailed.
func (g *Generator) HospitalCode(ctx context.Context, region, hospitalType string) (string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if !validRegion(region) {
		return "", ErrUnknownRegion
	}
	seg, ok := typeSegments[hospitalType]
	if !ok {
		return "", ErrUnknownType
	}

	prefix := fmt.Sprintf("%s-%s-%s-", codePrefix, region, seg)
	seq, err := g.nextSequence(ctx, prefix)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := fmt.Sprintf("%s%03d", prefix, seq)
		var count int64
		if err := g.DB.WithContext(ctx).Model(&models.Hospital{}).
			Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
		seq++
	}
	return "", ErrGenerationFailed
}

// InviteCode returns an opaque random token (INV- plus 128 bits base32).
// Collision odds are negligible but the code is still checked for global
// uniqueness and regenerated if taken.
func (g *Generator) InviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		buf := make([]byte, inviteTokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := invitePrefix + base32NoPad.EncodeToString(buf)

		var count int64
		if err := g.DB.WithContext(ctx).Model(&models.InviteCode{}).
			Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrGenerationFailed
}

// nextSequence returns max persisted sequence + 1 for the prefix.
func (g *Generator) nextSequence(ctx context.Context, prefix string) (int, error) {
	var last models.Hospital
	err := g.DB.WithContext(ctx).Unscoped().
		Where("code LIKE ?", prefix+"%").
		Order("code DESC").
		First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimPrefix(last.Code, prefix))
	if convErr != nil {
		return 0, fmt.Errorf("malformed sequence in code %q: %w", last.Code, convErr)
	}
	return n + 1, nil
}

func validRegion(region string) bool {
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}
