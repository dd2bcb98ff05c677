package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
)

// IdentityKind classifies the inbound credential.
type IdentityKind string

const (
	// IdentityRoot is a service-less, user-less administrative key.
	IdentityRoot IdentityKind = "root"
	// IdentityService is a service key; operations run scoped to it.
	IdentityService IdentityKind = "service"
	// IdentityAbsent means no credential was presented.
	IdentityAbsent IdentityKind = "absent"
)

// Identity is the resolved caller of a request.
type Identity struct {
	Kind    IdentityKind
	Service *sso.Service
	Key     *sso.KeyWithValue
}

// IsRoot reports whether the caller holds a root key.
func (i *Identity) IsRoot() bool { return i.Kind == IdentityRoot }

// ServiceMask returns the service id to scope reads by, or nil for root.
func (i *Identity) ServiceMask() *sso.Service {
	if i.Kind == IdentityService {
		return i.Service
	}
	return nil
}

// Authenticator resolves an inbound credential to an identity and seeds the
// request's audit builder.
type Authenticator struct {
	store sso.Store
}

func NewAuthenticator(st sso.Store) *Authenticator {
	return &Authenticator{store: st}
}

// Authenticate classifies the credential. An empty credential yields an
// Absent identity; a non-matching, disabled or revoked one is Forbidden.
// Authentication failures short-circuit before any engine logic, so no
// audit record is written here.
func (a *Authenticator) Authenticate(ctx context.Context, meta sso.AuditMeta, credential string) (*Identity, *sso.AuditBuilder, error) {
	audit := sso.NewAuditBuilder(meta)

	if credential == "" {
		return &Identity{Kind: IdentityAbsent}, audit, nil
	}

	if key, err := a.store.Key().ReadByRootValue(ctx, credential); err == nil {
		if !key.IsEnabled || key.IsRevoked {
			return nil, nil, sso.ErrForbidden()
		}
		audit.SetKey(&key.Key)
		return &Identity{Kind: IdentityRoot, Key: key}, audit, nil
	} else if !store.IsNotFound(err) {
		return nil, nil, storeFail(err)
	}

	key, err := a.store.Key().ReadByServiceValue(ctx, credential)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, sso.ErrForbidden()
		}
		return nil, nil, storeFail(err)
	}
	if !key.IsEnabled || key.IsRevoked || key.ServiceID == nil {
		return nil, nil, sso.ErrForbidden()
	}

	service, err := a.store.Service().ReadByID(ctx, *key.ServiceID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, sso.ErrForbidden()
		}
		return nil, nil, storeFail(err)
	}
	if !service.IsEnabled {
		return nil, nil, sso.ErrForbidden()
	}

	audit.SetKey(&key.Key).SetService(service)
	return &Identity{Kind: IdentityService, Service: service, Key: key}, audit, nil
}
