// Package pg persists principals, recordings and audit entries in Postgres.
// The race-sensitive lockout bookkeeping is done with single conditional
// UPDATE statements so concurrent logins serialize at the row, not in Go.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store owns the connection pool and hands out the per-surface stores. The
// surfaces are separate types because their interfaces share method names
// (Create, Find, List) over different aggregates.
type Store struct {
	db *sql.DB

	Principals *PrincipalStore
	Recordings *RecordingStore
	Audit      *AuditStore
}

// Open connects to Postgres and tunes the pool.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db), nil
}

// NewStore wraps an existing connection; tests hand it a sqlmock db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Principals: &PrincipalStore{db: db},
		Recordings: &RecordingStore{db: db},
		Audit:      &AuditStore{db: db},
	}
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool for the readiness probe.
func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func execAffectingOne(res sql.Result, missing error) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return missing
	}
	return nil
}
