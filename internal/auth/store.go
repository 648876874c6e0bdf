package auth

import (
	"context"
	"time"
)

// Store describes principal persistence. Implementations must make
// RecordLoginFailure a single conditional update: the counter may only
// increase while no lockout is in force, and the transition into the locked
// state happens exactly once no matter how many attempts race.
type Store interface {
	Create(ctx context.Context, p *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	List(ctx context.Context) ([]*Principal, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id string, role Role) error

	// RecordLoginFailure increments the failed-attempt counter and starts
	// a lockout window when the counter reaches threshold. When a lockout
	// is already in force the state is returned unchanged.
	RecordLoginFailure(ctx context.Context, id string, threshold int, window time.Duration) (LockoutState, error)

	// RecordLoginSuccess clears the counter and any lockout, and stamps
	// the last successful login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}
