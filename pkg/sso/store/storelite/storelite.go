// Package storelite implements the store contract on SQLite via
// modernc.org/sqlite. SQLite has no advisory locks, so the Locker is
// emulated in process; that is sufficient because an SQLite database has a
// single writer process anyway.
package storelite

import (
	"context"
	"errors"
	"sync"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"database/sql"
)

// Store implements sso.Store on an SQLite database.
type Store struct {
	db *sqlx.DB

	lockMu sync.Mutex
	locks  map[int32]*sync.RWMutex
}

func New(db *sqlx.DB) *Store {
	// Concurrent writers on SQLite fail fast without a single connection.
	db.SetMaxOpenConns(1)
	return &Store{
		db:    db,
		locks: make(map[int32]*sync.RWMutex),
	}
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

func (s *Store) Migrate(ctx context.Context) error {
	return s.Exclusive(ctx, sso.LockKeyMigration, func(ctx context.Context) error {
		for _, stmt := range migrations {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return store.ErrMigration(err)
			}
		}
		logx.Info("storelite: schema migrated")
		return nil
	})
}

func (s *Store) lock(key int32) *sync.RWMutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) Exclusive(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (s *Store) Shared(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	l := s.lock(key)
	l.RLock()
	defer l.RUnlock()
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
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrConflict()
		}
	}
	return store.ErrTransport(err)
}
