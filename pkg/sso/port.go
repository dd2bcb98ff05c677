package sso

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lock keys for the advisory Locker. Small integer namespace shared by all
// store backends.
const (
	LockKeyMigration int32 = 1
	LockKeyRetention int32 = 2
)

type ServiceRepository interface {
	List(ctx context.Context, query ServiceList) ([]Service, error)
	Create(ctx context.Context, create ServiceCreate) (*Service, error)
	ReadByID(ctx context.Context, id uuid.UUID) (*Service, error)
	Update(ctx context.Context, id uuid.UUID, update ServiceUpdate) (*Service, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	List(ctx context.Context, query UserList) ([]User, error)
	Create(ctx context.Context, create UserCreate) (*User, error)
	ReadByID(ctx context.Context, id uuid.UUID) (*User, error)
	ReadByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id uuid.UUID, update UserUpdate) (*User, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type KeyRepository interface {
	List(ctx context.Context, query KeyList) ([]Key, error)
	Create(ctx context.Context, create KeyCreate) (*KeyWithValue, error)
	ReadByID(ctx context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*Key, error)

	// ReadByRootValue resolves a root key (no service, no user) by secret.
	ReadByRootValue(ctx context.Context, value string) (*KeyWithValue, error)
	// ReadByServiceValue resolves a service key (service, no user) by secret.
	ReadByServiceValue(ctx context.Context, value string) (*KeyWithValue, error)
	// ReadByUserValue resolves a user key by secret within a service scope.
	ReadByUserValue(ctx context.Context, serviceID uuid.UUID, typ KeyType, value string) (*KeyWithValue, error)
	// ReadByUser resolves the key of the given type for (service, user).
	// At most one enabled, non-revoked key exists per (service, user, type);
	// when several rows match, the enabled non-revoked one wins.
	ReadByUser(ctx context.Context, serviceID, userID uuid.UUID, typ KeyType) (*KeyWithValue, error)

	Update(ctx context.Context, id uuid.UUID, update KeyUpdate) (*Key, error)
	// UpdateManyByUser applies update to every key of the user. Returns the
	// number of keys updated.
	UpdateManyByUser(ctx context.Context, userID uuid.UUID, update KeyUpdate) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CsrfRepository interface {
	Create(ctx context.Context, create CsrfCreate) (*Csrf, error)

	// ReadOpt is a consuming read: expired rows are swept, then the
	// requested key is read and deleted in one transaction. Returns
	// (nil, nil) when no live row exists. At most one caller ever
	// observes a given key.
	ReadOpt(ctx context.Context, key string) (*Csrf, error)
}

type AuditRepository interface {
	List(ctx context.Context, query AuditList) ([]Audit, error)
	Create(ctx context.Context, create AuditCreate) (*Audit, error)
	ReadByID(ctx context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*Audit, error)
	// DeleteMany removes audits created at or before the cutoff. Returns the
	// number of rows deleted. Used by the retention sweep.
	DeleteMany(ctx context.Context, createdLE time.Time) (int64, error)
}

// Locker runs fn under a backend-enforced advisory lock keyed by an integer.
type Locker interface {
	Exclusive(ctx context.Context, key int32, fn func(ctx context.Context) error) error
	Shared(ctx context.Context, key int32, fn func(ctx context.Context) error) error
}

// Store bundles the persistence capability surface the engine consumes.
type Store interface {
	Service() ServiceRepository
	User() UserRepository
	Key() KeyRepository
	Csrf() CsrfRepository
	Audit() AuditRepository
	Locker

	// Migrate brings the schema up to date. Runs under the migration lock.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
