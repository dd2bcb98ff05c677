package authsrv

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

// Manager implements the administrative CRUD surface over services, users,
// keys and audits. Operations are scoped by the caller's identity: a root
// key sees everything, a service key sees only its own slice.
type Manager struct {
	store sso.Store
	cfg   Config
}

func NewManager(st sso.Store, cfg Config) *Manager {
	return &Manager{store: st, cfg: cfg}
}

// ───────────────────────────── Services ─────────────────────────────

func (m *Manager) ServiceList(ctx context.Context, identity *Identity, query sso.ServiceList) ([]sso.Service, error) {
	if identity.Kind == IdentityService {
		query.IDs = []uuid.UUID{identity.Service.ID}
	}
	services, err := m.store.Service().List(ctx, query)
	if err != nil {
		return nil, storeFail(err)
	}
	return services, nil
}

func (m *Manager) ServiceCreate(ctx context.Context, identity *Identity, create sso.ServiceCreate) (*sso.Service, error) {
	if !identity.IsRoot() {
		return nil, sso.ErrForbidden()
	}
	service, err := m.store.Service().Create(ctx, create)
	if err != nil {
		return nil, storeFail(err)
	}
	return service, nil
}

func (m *Manager) ServiceRead(ctx context.Context, identity *Identity, id uuid.UUID) (*sso.Service, error) {
	if identity.Kind == IdentityService && identity.Service.ID != id {
		return nil, sso.ErrNotFound()
	}
	service, err := m.store.Service().ReadByID(ctx, id)
	if err != nil {
		return nil, storeFail(err)
	}
	return service, nil
}

func (m *Manager) ServiceUpdate(ctx context.Context, identity *Identity, id uuid.UUID, update sso.ServiceUpdate) (*sso.Service, error) {
	if identity.Kind == IdentityService && identity.Service.ID != id {
		return nil, sso.ErrNotFound()
	}
	service, err := m.store.Service().Update(ctx, id, update)
	if err != nil {
		return nil, storeFail(err)
	}
	return service, nil
}

func (m *Manager) ServiceDelete(ctx context.Context, identity *Identity, id uuid.UUID) error {
	if !identity.IsRoot() {
		return sso.ErrForbidden()
	}
	if err := m.store.Service().Delete(ctx, id); err != nil {
		return storeFail(err)
	}
	return nil
}

// ───────────────────────────── Users ─────────────────────────────

func (m *Manager) UserList(ctx context.Context, _ *Identity, query sso.UserList) ([]sso.User, error) {
	users, err := m.store.User().List(ctx, query)
	if err != nil {
		return nil, storeFail(err)
	}
	return users, nil
}

// UserCreateRequest carries a plaintext password; the manager hashes it.
type UserCreateRequest struct {
	IsEnabled             bool
	Name                  string
	Email                 string
	Locale                string
	Timezone              string
	PasswordAllowReset    bool
	PasswordRequireUpdate bool
	Password              *string
}

func (m *Manager) UserCreate(ctx context.Context, _ *Identity, req UserCreateRequest) (*sso.User, error) {
	create := sso.UserCreate{
		IsEnabled:             req.IsEnabled,
		Name:                  req.Name,
		Email:                 req.Email,
		Locale:                req.Locale,
		Timezone:              req.Timezone,
		PasswordAllowReset:    req.PasswordAllowReset,
		PasswordRequireUpdate: req.PasswordRequireUpdate,
	}
	if req.Password != nil {
		if err := m.PasswordValidate(*req.Password); err != nil {
			return nil, err
		}
		hash, err := sso.PasswordHash(*req.Password)
		if err != nil {
			return nil, err
		}
		create.PasswordHash = &hash
	}

	user, err := m.store.User().Create(ctx, create)
	if err != nil {
		return nil, storeFail(err)
	}
	return user, nil
}

func (m *Manager) UserRead(ctx context.Context, _ *Identity, id uuid.UUID) (*sso.User, error) {
	user, err := m.store.User().ReadByID(ctx, id)
	if err != nil {
		return nil, storeFail(err)
	}
	return user, nil
}

func (m *Manager) UserUpdate(ctx context.Context, _ *Identity, id uuid.UUID, update sso.UserUpdate) (*sso.User, error) {
	user, err := m.store.User().Update(ctx, id, update)
	if err != nil {
		return nil, storeFail(err)
	}
	return user, nil
}

func (m *Manager) UserDelete(ctx context.Context, identity *Identity, id uuid.UUID) error {
	if !identity.IsRoot() {
		return sso.ErrForbidden()
	}
	if err := m.store.User().Delete(ctx, id); err != nil {
		return storeFail(err)
	}
	return nil
}

// PasswordValidate enforces the length bound. No strength scoring.
func (m *Manager) PasswordValidate(password string) error {
	if len(password) < m.cfg.PasswordMinLength || len(password) > m.cfg.PasswordMaxLength {
		return sso.ErrBadRequest().WithDetail("reason", "password length out of bounds")
	}
	return nil
}

// ───────────────────────────── Keys ─────────────────────────────

func (m *Manager) KeyList(ctx context.Context, identity *Identity, query sso.KeyList) ([]sso.Key, error) {
	if identity.Kind == IdentityService {
		id := identity.Service.ID
		query.ServiceID = &id
	}
	keys, err := m.store.Key().List(ctx, query)
	if err != nil {
		return nil, storeFail(err)
	}
	return keys, nil
}

// KeyCreateRequest describes a key to mint. The secret value is generated
// here and returned exactly once.
type KeyCreateRequest struct {
	IsEnabled bool
	Type      sso.KeyType
	Name      string
	// ServiceID is honoured for root callers only; service callers are
	// pinned to their own service. Nil with a root caller mints a root key.
	ServiceID *uuid.UUID
	UserID    *uuid.UUID
}

func (m *Manager) KeyCreate(ctx context.Context, identity *Identity, req KeyCreateRequest) (*sso.KeyWithValue, error) {
	if !req.Type.Valid() {
		return nil, sso.ErrBadRequest().WithDetail("reason", "unknown key type")
	}

	serviceID := req.ServiceID
	if identity.Kind == IdentityService {
		id := identity.Service.ID
		serviceID = &id
	}
	if serviceID == nil && (!identity.IsRoot() || req.UserID != nil) {
		return nil, sso.ErrBadRequest().WithDetail("reason", "key requires a service")
	}

	// One live key per (service, user, type).
	if serviceID != nil && req.UserID != nil {
		existing, err := m.store.Key().ReadByUser(ctx, *serviceID, *req.UserID, req.Type)
		if err != nil && !store.IsNotFound(err) {
			return nil, storeFail(err)
		}
		if existing != nil && existing.IsEnabled && !existing.IsRevoked {
			return nil, sso.ErrConflict().WithDetail("reason", "user already has a key of this type")
		}
	}

	var value string
	var err error
	if req.Type == sso.KeyTypeTotp {
		value, err = sso.TotpSecretGenerate()
	} else {
		value, err = sso.KeyValueGenerate()
	}
	if err != nil {
		return nil, err
	}

	key, err := m.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: req.IsEnabled,
		Type:      req.Type,
		Name:      req.Name,
		Value:     value,
		ServiceID: serviceID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, storeFail(err)
	}
	return key, nil
}

func (m *Manager) KeyRead(ctx context.Context, identity *Identity, id uuid.UUID) (*sso.Key, error) {
	key, err := m.store.Key().ReadByID(ctx, id, m.serviceMask(identity))
	if err != nil {
		return nil, storeFail(err)
	}
	return key, nil
}

func (m *Manager) KeyUpdate(ctx context.Context, identity *Identity, id uuid.UUID, update sso.KeyUpdate) (*sso.Key, error) {
	if _, err := m.store.Key().ReadByID(ctx, id, m.serviceMask(identity)); err != nil {
		return nil, storeFail(err)
	}
	key, err := m.store.Key().Update(ctx, id, update)
	if err != nil {
		return nil, storeFail(err)
	}
	return key, nil
}

func (m *Manager) KeyDelete(ctx context.Context, identity *Identity, id uuid.UUID) error {
	if _, err := m.store.Key().ReadByID(ctx, id, m.serviceMask(identity)); err != nil {
		return storeFail(err)
	}
	if err := m.store.Key().Delete(ctx, id); err != nil {
		return storeFail(err)
	}
	return nil
}

func (m *Manager) serviceMask(identity *Identity) *uuid.UUID {
	if identity.Kind == IdentityService {
		id := identity.Service.ID
		return &id
	}
	return nil
}

// ───────────────────────────── Audits ─────────────────────────────

func (m *Manager) AuditList(ctx context.Context, identity *Identity, query sso.AuditList) ([]sso.Audit, error) {
	if identity.Kind == IdentityService {
		id := identity.Service.ID
		query.ServiceID = &id
	}
	audits, err := m.store.Audit().List(ctx, query)
	if err != nil {
		return nil, storeFail(err)
	}
	return audits, nil
}

// AuditCreate appends a client-supplied audit record under the caller's
// resolved scope.
func (m *Manager) AuditCreate(ctx context.Context, audit *sso.AuditBuilder, data sso.AuditData) (*sso.Audit, error) {
	created, err := audit.CreateData(ctx, m.store.Audit(), data)
	if err != nil {
		return nil, storeFail(err)
	}
	return created, nil
}

func (m *Manager) AuditRead(ctx context.Context, identity *Identity, id uuid.UUID) (*sso.Audit, error) {
	created, err := m.store.Audit().ReadByID(ctx, id, m.serviceMask(identity))
	if err != nil {
		return nil, storeFail(err)
	}
	return created, nil
}

// AuditRetentionSweep deletes audits older than the retention window.
// Runs under the shared retention lock so it never races a migration.
func (m *Manager) AuditRetentionSweep(ctx context.Context, retention time.Duration) (int64, error) {
	var deleted int64
	err := m.store.Shared(ctx, sso.LockKeyRetention, func(ctx context.Context) error {
		var err error
		deleted, err = m.store.Audit().DeleteMany(ctx, time.Now().Add(-retention))
		return err
	})
	if err != nil {
		return 0, storeFail(err)
	}
	if deleted > 0 {
		logx.WithField("deleted", deleted).Info("authsrv: audit retention sweep")
	}
	return deleted, nil
}

// RootKeyEnsure seeds the administrative root key at startup. When a key
// with the configured value already exists this is a no-op.
func (m *Manager) RootKeyEnsure(ctx context.Context, value string) (*sso.KeyWithValue, error) {
	key, err := m.store.Key().ReadByRootValue(ctx, value)
	if err == nil {
		return key, nil
	}
	if !store.IsNotFound(err) {
		return nil, storeFail(err)
	}

	key, err = m.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true,
		Type:      sso.KeyTypeKey,
		Name:      "Root",
		Value:     value,
	})
	if err != nil {
		return nil, storeFail(err)
	}
	logx.Info("authsrv: root key seeded")
	return key, nil
}
