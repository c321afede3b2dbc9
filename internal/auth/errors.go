package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")

	ErrInvalidEmailFormat = errors.New("Email format is invalid")
	ErrWeakPassword       = errors.New("Password must be at least 8 characters with a letter, number and special character")
	ErrInvalidFullname    = errors.New("Fullname contains invalid characters")
	ErrEmailTaken         = errors.New("Email is already registered")
	ErrSignupRateLimited  = errors.New("Too many signup attempts, please try again later")
)
