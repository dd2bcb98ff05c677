package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
)

// TokenVerify checks an access token and returns its user.
func (e *Engine) TokenVerify(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string, data *sso.AuditData) (*sso.UserTokenAccess, error) {
	claims, err := sso.TokenDecodeUnsafe(token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenVerifyError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest()
	}

	user, err := e.userReadByID(ctx, audit, sso.AuditTypeTokenVerifyError, claims.UserID)
	if err != nil {
		return nil, err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeTokenVerifyError, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, err
	}

	exp, _, err := sso.TokenDecode(service.ID, user.ID, sso.TokenTypeAccess, key.Value, token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenVerifyError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest()
	}

	e.auditData(ctx, audit, data)
	return &sso.UserTokenAccess{User: *user, AccessToken: token, AccessTokenExpires: exp}, nil
}

// TokenRefresh redeems a refresh token for a new access/refresh pair. The
// old refresh token's CSRF is consumed, so it can never be redeemed again.
func (e *Engine) TokenRefresh(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string, data *sso.AuditData) (*sso.UserToken, error) {
	claims, err := sso.TokenDecodeUnsafe(token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRefreshError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest()
	}

	user, err := e.userReadByID(ctx, audit, sso.AuditTypeTokenRefreshError, claims.UserID)
	if err != nil {
		return nil, err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeTokenRefreshError, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, err
	}

	_, csrfKey, err := sso.TokenDecode(service.ID, user.ID, sso.TokenTypeRefresh, key.Value, token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRefreshError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest()
	}
	if csrfKey == nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRefreshError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest()
	}
	if err := e.csrfConsume(ctx, service.ID, *csrfKey); err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRefreshError, sso.AuditMessageCsrfNotFoundOrUsed)
		return nil, sso.ErrBadRequest()
	}

	fresh, err := e.encodeUserToken(ctx, service, user, key)
	if err != nil {
		return nil, err
	}
	e.auditData(ctx, audit, data)
	e.auditInternal(ctx, audit, sso.AuditTypeTokenRefresh, sso.AuditMessageTokenRefresh)
	return fresh, nil
}

// TokenRevoke disables and revokes the user's token signing key, which
// invalidates every token ever signed with it. The reads are unchecked so
// an already-disabled account can still be cleaned up.
func (e *Engine) TokenRevoke(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string, data *sso.AuditData) error {
	claims, err := sso.TokenDecodeUnsafe(token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRevokeError, sso.AuditMessageTokenInvalidOrExpired)
		return sso.ErrBadRequest()
	}

	user, err := e.userReadByIDUnchecked(ctx, audit, sso.AuditTypeTokenRevokeError, claims.UserID)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUserUnchecked(ctx, audit, sso.AuditTypeTokenRevokeError, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}

	// Decode with the type the token claims for itself.
	_, csrfKey, err := sso.TokenDecode(service.ID, user.ID, claims.Type, key.Value, token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeTokenRevokeError, sso.AuditMessageTokenInvalidOrExpired)
		return sso.ErrBadRequest()
	}
	if csrfKey != nil {
		// Best effort: the CSRF may already be gone, the key dies anyway.
		if err := e.csrfConsume(ctx, service.ID, *csrfKey); err != nil {
			logx.WithError(err).Debug("authsrv: token revoke csrf consume failed")
		}
	}

	disabled, revoked := false, true
	if _, err := e.store.Key().Update(ctx, key.ID, sso.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked}); err != nil {
		return storeFail(err)
	}

	e.auditData(ctx, audit, data)
	e.auditInternal(ctx, audit, sso.AuditTypeTokenRevoke, sso.AuditMessageTokenRevoke)
	return nil
}
