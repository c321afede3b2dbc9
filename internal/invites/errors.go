package invites

import "errors"

// ErrorCode is the closed set of validation failure kinds. Callers branch on
// these, never on error strings.
type ErrorCode string

const (
	CodeInvalidFormat     ErrorCode = "INVITE_CODE_INVALID_FORMAT"
	CodeNotFound          ErrorCode = "INVITE_CODE_NOT_FOUND"
	CodeAlreadyUsed       ErrorCode = "INVITE_CODE_ALREADY_USED"
	CodeExpired           ErrorCode = "INVITE_CODE_EXPIRED"
	CodeMaxUsesExceeded   ErrorCode = "INVITE_CODE_MAX_USES_EXCEEDED"
	CodeHospitalInactive  ErrorCode = "INVITE_CODE_HOSPITAL_INACTIVE"
	CodeRateLimitExceeded ErrorCode = "INVITE_CODE_RATE_LIMIT_EXCEEDED"
	CodeSystemError       ErrorCode = "INVITE_CODE_SYSTEM_ERROR"
)

// messages are the user-facing texts keyed off ErrorCode.
var messages = map[ErrorCode]string{
	CodeInvalidFormat:     "Invite code format is invalid",
	CodeNotFound:          "Invite code not found",
	CodeAlreadyUsed:       "Invite code has been deactivated",
	CodeExpired:           "Invite code has expired",
	CodeMaxUsesExceeded:   "Invite code has no remaining uses",
	CodeHospitalInactive:  "Hospital is not accepting signups",
	CodeRateLimitExceeded: "Too many attempts, please try again later",
	CodeSystemError:       "Something went wrong, please try again",
}

// Message returns the user-facing text for an error code.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CodeSystemError]
}

var (
	ErrHospitalNotFound = errors.New("Hospital not found")
	ErrHospitalInactive = errors.New("Hospital is deactivated")
	ErrInviteNotFound   = errors.New("Invite code not found")
	ErrRateLimited      = errors.New("Code generation rate limit exceeded")
)
