package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
)

// KeyVerify resolves a bearer API key to its user within the calling
// service's scope. A key belonging to another service is indistinguishable
// from a missing one.
func (e *Engine) KeyVerify(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, keyValue string, data *sso.AuditData) (*sso.UserKey, error) {
	key, err := e.keyReadByUserValue(ctx, audit, sso.AuditTypeKeyVerifyError, service, keyValue)
	if err != nil {
		return nil, err
	}
	if key.UserID == nil {
		e.auditInternal(ctx, audit, sso.AuditTypeKeyVerifyError, sso.AuditMessageKeyUndefined)
		return nil, sso.ErrBadRequest()
	}

	user, err := e.userReadByID(ctx, audit, sso.AuditTypeKeyVerifyError, *key.UserID)
	if err != nil {
		return nil, err
	}

	e.auditData(ctx, audit, data)
	return &sso.UserKey{User: *user, Key: key.Value}, nil
}

// KeyRevoke disables and revokes a bearer API key. The read is unchecked so
// an already-disabled key can still be revoked.
func (e *Engine) KeyRevoke(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, keyValue string, data *sso.AuditData) error {
	key, err := e.keyReadByUserValueUnchecked(ctx, audit, sso.AuditTypeKeyRevokeError, service, keyValue)
	if err != nil {
		return err
	}

	disabled, revoked := false, true
	if _, err := e.store.Key().Update(ctx, key.ID, sso.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked}); err != nil {
		return storeFail(err)
	}

	e.auditData(ctx, audit, data)
	e.auditInternal(ctx, audit, sso.AuditTypeKeyRevoke, sso.AuditMessageKeyRevoke)
	return nil
}
