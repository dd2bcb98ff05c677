package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
)

// Login authenticates an email/password pair and mints an access/refresh
// token pair for (service, user).
func (e *Engine) Login(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, email, password string) (*sso.UserToken, error) {
	user, err := e.userReadByEmail(ctx, audit, sso.AuditTypeLoginError, email)
	if err != nil {
		return nil, err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeLoginError, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, err
	}

	// A user flagged for a forced password update cannot log in until the
	// update-password flow clears the flag.
	if user.PasswordRequireUpdate {
		e.auditInternal(ctx, audit, sso.AuditTypeLoginError, sso.AuditMessagePasswordUpdateRequired)
		return nil, sso.ErrForbidden()
	}

	if !sso.PasswordVerify(user.PasswordHash, password) {
		e.auditInternal(ctx, audit, sso.AuditTypeLoginError, sso.AuditMessagePasswordNotSetOrIncorrect)
		return nil, sso.ErrBadRequest()
	}

	token, err := e.encodeUserToken(ctx, service, user, key)
	if err != nil {
		return nil, err
	}
	e.auditInternal(ctx, audit, sso.AuditTypeLogin, sso.AuditMessageLogin)
	return token, nil
}
