package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ids"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
)

const (
	defaultTokenTTL    = 15 * time.Minute
	defaultMaxAttempts = 5
	defaultLockWindow  = 30 * time.Minute
)

// Service implements credential checks, session issuance and account
// management on top of a Store.
type Service struct {
	store Store
	now   func() time.Time

	issuer      string
	tokenTTL    time.Duration
	bcryptCost  int
	maxAttempts int
	lockWindow  time.Duration

	onLockout func()

	tokens *Tokens
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithTokenTTL configures session token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
		return nil
	}
}

// WithBcryptCost configures the password hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
		return nil
	}
}

// WithLoginPolicy configures the lockout threshold and window.
func WithLoginPolicy(maxAttempts int, window time.Duration) ServiceOption {
	return func(s *Service) error {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if window > 0 {
			s.lockWindow = window
		}
		return nil
	}
}

// WithLockoutHook registers a callback fired exactly once per lockout
// transition. The API wires it to the lockout counter metric.
func WithLockoutHook(fn func()) ServiceOption {
	return func(s *Service) error {
		s.onLockout = fn
		return nil
	}
}

// NewService constructs the service. The signing secret is mandatory.
func NewService(store Store, secret []byte, opts ...ServiceOption) (*Service, error) {
	svc := &Service{
		store:       store,
		now:         time.Now,
		tokenTTL:    defaultTokenTTL,
		bcryptCost:  bcrypt.DefaultCost,
		maxAttempts: defaultMaxAttempts,
		lockWindow:  defaultLockWindow,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	tokens, err := NewTokens(secret, svc.issuer, svc.tokenTTL, svc.now)
	if err != nil {
		return nil, err
	}
	svc.tokens = tokens
	return svc, nil
}

// Register creates an active account with the user role. Elevated roles are
// only ever granted by an admin afterwards.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Login verifies credentials and issues a session token.
//
// The failure order is fixed: unknown email burns a dummy hash comparison and
// reports invalid credentials; a locked account reports the lock without
// touching the counter; a deactivated account is reported as such; only then
// is the password checked, with a failed check feeding the lockout counter.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, *Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil || password == "" {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			CompareDummy(password)
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}

	now := s.now().UTC()
	if p.Locked(now) {
		return "", time.Time{}, nil, ErrAccountLocked
	}
	if !p.Active {
		return "", time.Time{}, nil, ErrAccountDeactivated
	}

	if err := VerifyPassword(p.PasswordHash, password); err != nil {
		state, ferr := s.store.RecordLoginFailure(ctx, p.ID, s.maxAttempts, s.lockWindow)
		switch {
		case ferr != nil:
			// A lost counter write weakens lockout protection; the caller
			// still sees the uniform credential error, but operations must
			// hear about it.
			obs.LogEvent("error", "lockout_write_failed", map[string]any{
				"principal_id": p.ID,
				"error":        ferr.Error(),
			})
		case state.JustLocked && s.onLockout != nil:
			s.onLockout()
		}
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLoginSuccess(ctx, p.ID, now); err != nil {
		return "", time.Time{}, nil, err
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	p.LastLoginAt = &now

	token, exp, err := s.tokens.Issue(*p)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, exp, p, nil
}

// Verify authenticates a bearer token and loads the current account state.
// The stored role wins over the token's role claim, and deactivation or an
// active lockout rejects the token even before it expires.
func (s *Service) Verify(ctx context.Context, raw string) (*Principal, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !p.Active {
		return nil, ErrAccountDeactivated
	}
	if p.Locked(s.now().UTC()) {
		return nil, ErrAccountLocked
	}
	return p, nil
}

// ChangePassword re-verifies the current password before accepting the new
// one.
func (s *Service) ChangePassword(ctx context.Context, principalID, current, next string) error {
	p, err := s.store.Find(ctx, principalID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(p.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, p.ID, hash)
}

// Get loads a principal by id.
func (s *Service) Get(ctx context.Context, id string) (*Principal, error) {
	return s.store.Find(ctx, id)
}

// List returns every account, for the admin user directory.
func (s *Service) List(ctx context.Context) ([]*Principal, error) {
	return s.store.List(ctx)
}

// SetActive enables or disables an account. Disabling also invalidates the
// account's outstanding tokens at verification time.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.SetActive(ctx, id, active)
}

// SetRole changes an account's role within the closed role set.
func (s *Service) SetRole(ctx context.Context, id string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return s.store.SetRole(ctx, id, role)
}

// EnsureAccount creates an account with the given role if the email is not
// registered yet. Used to bootstrap the first admin from the environment.
func (s *Service) EnsureAccount(ctx context.Context, email, password, name string, role Role) (*Principal, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindByEmail(ctx, normalized); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	p, err := s.Register(ctx, normalized, password, name)
	if err != nil {
		return nil, err
	}
	if role != RoleUser {
		if err := s.store.SetRole(ctx, p.ID, role); err != nil {
			return nil, err
		}
		p.Role = role
	}
	return p, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}
