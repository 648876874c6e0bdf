package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by the demo deployment and tests. All
// conditional lockout logic runs under one lock, giving the same atomicity
// the Postgres store gets from its single conditional UPDATE.
type MemStore struct {
	mu      sync.Mutex
	byID    map[string]*Principal
	byEmail map[string]string
	now     func() time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:    make(map[string]*Principal),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source, so tests can move one fake
// clock across the service and the store together.
func (s *MemStore) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *MemStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[p.Email]; ok {
		return ErrEmailTaken
	}
	cp := *p
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	return nil
}

func (s *MemStore) Find(_ context.Context, id string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyByID(id)
}

func (s *MemStore) FindByEmail(_ context.Context, email string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.copyByID(id)
}

func (s *MemStore) List(_ context.Context) ([]*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Principal, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = passwordHash
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemStore) SetRole(_ context.Context, id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemStore) RecordLoginFailure(_ context.Context, id string, threshold int, window time.Duration) (LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return LockoutState{}, ErrNotFound
	}

	now := s.now().UTC()
	if p.Locked(now) {
		// Attempts during an active lockout neither increment the counter
		// nor extend the window.
		return LockoutState{Attempts: p.FailedAttempts, LockedUntil: copyTime(p.LockedUntil)}, nil
	}

	p.FailedAttempts++
	var justLocked bool
	if p.FailedAttempts >= threshold {
		until := now.Add(window)
		p.LockedUntil = &until
		justLocked = true
	}
	p.UpdatedAt = now

	return LockoutState{
		Attempts:    p.FailedAttempts,
		LockedUntil: copyTime(p.LockedUntil),
		JustLocked:  justLocked,
	}, nil
}

func (s *MemStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	at = at.UTC()
	p.LastLoginAt = &at
	p.UpdatedAt = at
	return nil
}

func (s *MemStore) copyByID(id string) (*Principal, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.LockedUntil = copyTime(p.LockedUntil)
	cp.LastLoginAt = copyTime(p.LastLoginAt)
	return &cp, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

var _ Store = (*MemStore)(nil)
