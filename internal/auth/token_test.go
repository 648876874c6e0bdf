package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenRoundTrip(t *testing.T) {
	clock := newFakeClock()
	tokens, err := NewTokens([]byte("secret"), "", 15*time.Minute, clock.Now)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, exp, err := tokens.Issue(Principal{ID: "u1", Role: RoleClinician})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := clock.Now().Add(15 * time.Minute); !exp.Equal(want) {
		t.Fatalf("expiry = %v, want %v", exp, want)
	}

	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != RoleClinician {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.Issuer != defaultIssuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestTokenExpiry(t *testing.T) {
	clock := newFakeClock()
	tokens, err := NewTokens([]byte("secret"), "", 15*time.Minute, clock.Now)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, _, err := tokens.Issue(Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.Advance(14 * time.Minute)
	if _, err := tokens.Verify(signed); err != nil {
		t.Fatalf("token should still verify: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	clock := newFakeClock()
	a, _ := NewTokens([]byte("secret-a"), "", time.Minute, clock.Now)
	b, _ := NewTokens([]byte("secret-b"), "", time.Minute, clock.Now)

	signed, _, err := a.Issue(Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	clock := newFakeClock()
	tokens, _ := NewTokens([]byte("secret"), "", time.Minute, clock.Now)

	signed, _, err := tokens.Issue(Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := []byte(signed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	if _, err := tokens.Verify(string(tampered)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsForeignAlgorithm(t *testing.T) {
	clock := newFakeClock()
	tokens, _ := NewTokens([]byte("secret"), "", time.Minute, clock.Now)

	claims := Claims{
		Role: RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}
	if _, err := tokens.Verify(foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsUnknownRoleClaim(t *testing.T) {
	clock := newFakeClock()
	tokens, _ := NewTokens([]byte("secret"), "", time.Minute, clock.Now)

	claims := Claims{
		Role: Role("superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := tokens.Verify(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsWrongIssuer(t *testing.T) {
	clock := newFakeClock()
	issued, _ := NewTokens([]byte("secret"), "other-service", time.Minute, clock.Now)
	verifier, _ := NewTokens([]byte("secret"), "", time.Minute, clock.Now)

	signed, _, err := issued.Issue(Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	clock := newFakeClock()
	tokens, _ := NewTokens([]byte("secret"), "", time.Minute, clock.Now)

	for _, raw := range []string{"", "   ", "abc", "a.b.c"} {
		if _, err := tokens.Verify(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Verify(%q): expected ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestNewTokensValidation(t *testing.T) {
	if _, err := NewTokens(nil, "", time.Minute, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokens([]byte("s"), "", 0, nil); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
