package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
)

// PrincipalStore implements auth.Store on Postgres.
type PrincipalStore struct {
	db *sql.DB
}

var _ auth.Store = (*PrincipalStore)(nil)

const principalColumns = `id, email, password_hash, name, role, active,
	failed_attempts, locked_until, last_login_at, created_at, updated_at`

func (s *PrincipalStore) Create(ctx context.Context, p *auth.Principal) error {
	_, err := s.db.ExecContext(ctx, `
		insert into principals
			(id, email, password_hash, name, role, active, failed_attempts, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`, p.ID, p.Email, p.PasswordHash, p.Name, string(p.Role), p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *PrincipalStore) Find(ctx context.Context, id string) (*auth.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id = $1`, id)
	return scanPrincipal(row)
}

func (s *PrincipalStore) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where email = $1`, email)
	return scanPrincipal(row)
}

func (s *PrincipalStore) List(ctx context.Context) ([]*auth.Principal, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+principalColumns+` from principals order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PrincipalStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.updateOne(ctx, `
		update principals set password_hash = $2, updated_at = now() where id = $1
	`, id, passwordHash)
}

func (s *PrincipalStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateOne(ctx, `
		update principals set active = $2, updated_at = now() where id = $1
	`, id, active)
}

func (s *PrincipalStore) SetRole(ctx context.Context, id string, role auth.Role) error {
	return s.updateOne(ctx, `
		update principals set role = $2, updated_at = now() where id = $1
	`, id, string(role))
}

// RecordLoginFailure is the conditional update the lockout design hinges on.
// The WHERE clause excludes rows with an active lockout, so under concurrent
// failures the increments serialize on the row and exactly one of them
// crosses the threshold and writes locked_until. A no-op update means the
// account was already locked; its state is read back unchanged.
func (s *PrincipalStore) RecordLoginFailure(ctx context.Context, id string, threshold int, window time.Duration) (auth.LockoutState, error) {
	now := time.Now().UTC()
	until := now.Add(window)

	var (
		attempts    int
		lockedUntil sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		update principals
		   set failed_attempts = failed_attempts + 1,
		       locked_until = case when failed_attempts + 1 >= $2 then $3::timestamptz end,
		       updated_at = $4
		 where id = $1
		   and (locked_until is null or locked_until <= $4)
		returning failed_attempts, locked_until
	`, id, threshold, until, now).Scan(&attempts, &lockedUntil)
	if err == nil {
		return auth.LockoutState{
			Attempts:    attempts,
			LockedUntil: timePtr(lockedUntil),
			JustLocked:  lockedUntil.Valid,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return auth.LockoutState{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		select failed_attempts, locked_until from principals where id = $1
	`, id).Scan(&attempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.LockoutState{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.LockoutState{}, err
	}
	return auth.LockoutState{Attempts: attempts, LockedUntil: timePtr(lockedUntil)}, nil
}

func (s *PrincipalStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, `
		update principals
		   set failed_attempts = 0, locked_until = null, last_login_at = $2, updated_at = $2
		 where id = $1
	`, id, at.UTC())
}

func (s *PrincipalStore) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return execAffectingOne(res, auth.ErrNotFound)
}

func scanPrincipal(row rowScanner) (*auth.Principal, error) {
	var (
		p           auth.Principal
		role        string
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &role, &p.Active,
		&p.FailedAttempts, &lockedUntil, &lastLogin, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Role = auth.Role(role)
	p.LockedUntil = timePtr(lockedUntil)
	p.LastLoginAt = timePtr(lastLogin)
	return &p, nil
}
