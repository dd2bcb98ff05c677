package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

// Checked reads enforce the enabled/revoked gates and record the failure
// under the calling operation's error audit type. Unchecked variants skip
// the gates; they exist so revoke and reset-confirm flows can clean up
// already-disabled accounts.

func (e *Engine) userReadByEmail(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, email string) (*sso.User, error) {
	user, err := e.store.User().ReadByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageUserNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUser(user)
	if !user.IsEnabled {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageUserDisabled)
		return nil, sso.ErrBadRequest()
	}
	return user, nil
}

func (e *Engine) userReadByID(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, id uuid.UUID) (*sso.User, error) {
	user, err := e.store.User().ReadByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageUserNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUser(user)
	if !user.IsEnabled {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageUserDisabled)
		return nil, sso.ErrBadRequest()
	}
	return user, nil
}

func (e *Engine) userReadByIDUnchecked(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, id uuid.UUID) (*sso.User, error) {
	user, err := e.store.User().ReadByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageUserNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUser(user)
	return user, nil
}

func (e *Engine) keyReadByUser(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, service *sso.Service, user *sso.User, typ sso.KeyType) (*sso.KeyWithValue, error) {
	key, err := e.store.Key().ReadByUser(ctx, service.ID, user.ID, typ)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUserKey(&key.Key)
	if !key.IsEnabled || key.IsRevoked {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyDisabledOrRevoked)
		return nil, sso.ErrBadRequest()
	}
	return key, nil
}

func (e *Engine) keyReadByUserUnchecked(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, service *sso.Service, user *sso.User, typ sso.KeyType) (*sso.KeyWithValue, error) {
	key, err := e.store.Key().ReadByUser(ctx, service.ID, user.ID, typ)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUserKey(&key.Key)
	return key, nil
}

func (e *Engine) keyReadByUserValue(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, service *sso.Service, value string) (*sso.KeyWithValue, error) {
	key, err := e.store.Key().ReadByUserValue(ctx, service.ID, sso.KeyTypeKey, value)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUserKey(&key.Key)
	if !key.IsEnabled || key.IsRevoked {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyDisabledOrRevoked)
		return nil, sso.ErrBadRequest()
	}
	return key, nil
}

func (e *Engine) keyReadByUserValueUnchecked(ctx context.Context, audit *sso.AuditBuilder, errType sso.AuditType, service *sso.Service, value string) (*sso.KeyWithValue, error) {
	key, err := e.store.Key().ReadByUserValue(ctx, service.ID, sso.KeyTypeKey, value)
	if err != nil {
		if store.IsNotFound(err) {
			e.auditInternal(ctx, audit, errType, sso.AuditMessageKeyNotFound)
			return nil, sso.ErrBadRequest()
		}
		return nil, storeFail(err)
	}
	audit.SetUserKey(&key.Key)
	return key, nil
}
