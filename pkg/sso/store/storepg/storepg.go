// Package storepg implements the store contract on PostgreSQL via sqlx.
package storepg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store implements sso.Store on a PostgreSQL database.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Service() sso.ServiceRepository { return &serviceRepo{db: s.db} }
func (s *Store) User() sso.UserRepository       { return &userRepo{db: s.db} }
func (s *Store) Key() sso.KeyRepository         { return &keyRepo{db: s.db} }
func (s *Store) Csrf() sso.CsrfRepository       { return &csrfRepo{db: s.db} }
func (s *Store) Audit() sso.AuditRepository     { return &auditRepo{db: s.db} }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.ErrTransport(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the schema under the exclusive migration lock so multiple
// instances can start concurrently.
func (s *Store) Migrate(ctx context.Context) error {
	return s.Exclusive(ctx, sso.LockKeyMigration, func(ctx context.Context) error {
		for _, stmt := range migrations {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return store.ErrMigration(err)
			}
		}
		logx.Info("storepg: schema migrated")
		return nil
	})
}

// Exclusive runs fn under a session-level pg advisory lock. The lock is
// held on a dedicated connection for the duration of fn.
func (s *Store) Exclusive(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	return s.advisory(ctx, key, fn, "pg_advisory_lock", "pg_advisory_unlock")
}

// Shared runs fn under the shared form of the advisory lock.
func (s *Store) Shared(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	return s.advisory(ctx, key, fn, "pg_advisory_lock_shared", "pg_advisory_unlock_shared")
}

func (s *Store) advisory(ctx context.Context, key int32, fn func(ctx context.Context) error, acquire, release string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return store.ErrTransport(err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT "+acquire+"($1)", key); err != nil {
		return store.ErrTransport(err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT "+release+"($1)", key); err != nil {
			logx.WithError(err).Warn("storepg: advisory unlock failed")
		}
	}()

	return fn(ctx)
}

// classify maps driver errors onto the store failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound()
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return store.ErrConflict()
	}
	return store.ErrTransport(err)
}
