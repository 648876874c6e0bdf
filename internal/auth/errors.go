package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so responses cannot be used to probe which accounts exist.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrAccountLocked is returned while a lockout window is in force.
	ErrAccountLocked = errors.New("auth: account locked")

	// ErrAccountDeactivated is returned for administratively disabled
	// accounts, including tokens issued before deactivation.
	ErrAccountDeactivated = errors.New("auth: account deactivated")

	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")

	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound     = errors.New("auth: not found")
	ErrEmailTaken   = errors.New("auth: email already registered")
	ErrInvalidInput = errors.New("auth: invalid input")
)
