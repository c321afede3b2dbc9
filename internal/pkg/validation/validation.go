package validation

import (
	"regexp"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Fullname: letters, spaces, hyphens, apostrophes only.
var fullnameRe = regexp.MustCompile(`^[A-Za-z\s\-']+$`)

// Hospital code: OB-<REGION>-<TYPE>-<SEQ>, e.g. OB-SEOUL-CLINIC-001.
var hospitalCodeRe = regexp.MustCompile(`^OB-[A-Z]{2,16}-(CLINIC|ORIENTAL|HOSPITAL)-\d{3,6}$`)

// Invite code: uppercase alphanumerics and hyphens, 8..64 chars, no leading or
// trailing hyphen. Generated codes are INV- plus 26 base32 chars; the pattern
// also admits manually seeded codes like INV-TEST-001.
var inviteCodeRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{6,62}[A-Z0-9]$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires:
// - at least 8 characters
// - contains at least one letter
// - contains at least one number
// - contains at least one special character
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidFullname(fullname string) bool {
	return fullname != "" && fullnameRe.MatchString(fullname)
}

func IsValidHospitalCode(code string) bool {
	return hospitalCodeRe.MatchString(code)
}

func IsValidInviteCode(code string) bool {
	return inviteCodeRe.MatchString(code)
}
