package auth

import (
	"strings"
	"time"
)

// Role is the closed set of access levels. There is no free-form role
// creation: authorization rules reference these three values only.
type Role string

const (
	// RoleUser may manage their own recordings.
	RoleUser Role = "user"
	// RoleClinician may additionally review any recording and submit
	// diagnostic feedback.
	RoleClinician Role = "clinician"
	// RoleAdmin may additionally manage accounts and read the audit log.
	RoleAdmin Role = "admin"
)

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleClinician:
		return RoleClinician, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidInput
	}
}

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleClinician || r == RoleAdmin
}

// Principal is an account that can authenticate against the service. The
// password hash and lockout bookkeeping never serialize to JSON.
type Principal struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name,omitempty"`
	Role         Role   `json:"role"`
	Active       bool   `json:"active"`

	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Locked reports whether a lockout window is in force at the given instant.
func (p Principal) Locked(now time.Time) bool {
	return p.LockedUntil != nil && p.LockedUntil.After(now)
}

// LockoutState is the outcome of recording one failed login attempt.
type LockoutState struct {
	// Attempts is the failed-attempt counter after the call.
	Attempts int
	// LockedUntil is the end of the lockout window, if one is in force.
	LockedUntil *time.Time
	// JustLocked is set only by the call that transitioned the account
	// into the locked state, so lockouts are counted exactly once even
	// under concurrent attempts.
	JustLocked bool
}

// Locked reports whether the state describes an active lockout.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}
