package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/asyncx"
	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/google/uuid"
)

// ResetPassword issues a reset-password token and emails it to the user.
// Every error after authentication is swallowed so the caller cannot infer
// whether the email maps to an account; the audit trail keeps the truth.
func (e *Engine) ResetPassword(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, email string) {
	if err := e.resetPassword(ctx, service, audit, email); err != nil {
		logx.WithError(err).Debug("authsrv: reset password suppressed")
	}
}

func (e *Engine) resetPassword(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, email string) error {
	user, err := e.userReadByEmail(ctx, audit, sso.AuditTypeResetPasswordError, email)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeResetPasswordError, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	if !user.PasswordAllowReset {
		e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordError, sso.AuditMessageResetPasswordDisabled)
		return sso.ErrBadRequest()
	}

	csrf, err := e.csrfCreate(ctx, service, e.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	token, _, err := sso.TokenEncode(service.ID, user.ID, key.Value, sso.TokenTypeResetPassword, e.cfg.ResetTokenTTL, &csrf.Key)
	if err != nil {
		return err
	}

	e.auditInternal(ctx, audit, sso.AuditTypeResetPassword, sso.AuditMessageResetPassword)
	e.notifier.SendResetPassword(ctx, NotifyResetPassword{Service: *service, User: *user, Token: token})
	return nil
}

// ResetPasswordConfirm redeems a reset-password token and stores the new
// password hash. The token is single-use through its CSRF.
func (e *Engine) ResetPasswordConfirm(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token, password string) error {
	claims, err := sso.TokenDecodeUnsafe(token)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordConfirmError, sso.AuditMessageTokenInvalidOrExpired)
		return sso.ErrBadRequest()
	}

	user, err := e.userReadByID(ctx, audit, sso.AuditTypeResetPasswordConfirmError, claims.UserID)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeResetPasswordConfirmError, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	if !user.PasswordAllowReset {
		e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordConfirmError, sso.AuditMessageResetPasswordDisabled)
		return sso.ErrBadRequest()
	}

	_, csrfKey, err := sso.TokenDecode(service.ID, user.ID, sso.TokenTypeResetPassword, key.Value, token)
	if err != nil || csrfKey == nil {
		e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordConfirmError, sso.AuditMessageTokenInvalidOrExpired)
		return sso.ErrBadRequest()
	}

	// Hash while the nonce is consumed; argon2 dominates this path.
	hashFuture := asyncx.Run(func() (string, error) { return sso.PasswordHash(password) })

	if err := e.csrfConsume(ctx, service.ID, *csrfKey); err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordConfirmError, sso.AuditMessageCsrfNotFoundOrUsed)
		return sso.ErrBadRequest()
	}

	hash, err := hashFuture.Await()
	if err != nil {
		return err
	}
	if err := e.store.User().UpdatePassword(ctx, user.ID, hash); err != nil {
		return storeFail(err)
	}

	e.auditInternal(ctx, audit, sso.AuditTypeResetPasswordConfirm, sso.AuditMessageResetPasswordConfirm)
	return nil
}

// UpdateEmail changes a user's email after verifying their password, and
// emails the old address a revoke token that can undo the takeover.
func (e *Engine) UpdateEmail(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, userID uuid.UUID, password, newEmail string) error {
	user, err := e.userReadByID(ctx, audit, sso.AuditTypeUpdateEmailError, userID)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeUpdateEmailError, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	if user.PasswordRequireUpdate {
		e.auditInternal(ctx, audit, sso.AuditTypeUpdateEmailError, sso.AuditMessagePasswordUpdateRequired)
		return sso.ErrForbidden()
	}
	if !sso.PasswordVerify(user.PasswordHash, password) {
		e.auditInternal(ctx, audit, sso.AuditTypeUpdateEmailError, sso.AuditMessagePasswordNotSetOrIncorrect)
		return sso.ErrBadRequest()
	}

	oldEmail := user.Email

	csrf, err := e.csrfCreate(ctx, service, e.cfg.RevokeTokenTTL)
	if err != nil {
		return err
	}
	revokeToken, _, err := sso.TokenEncode(service.ID, user.ID, key.Value, sso.TokenTypeUpdateEmailRevoke, e.cfg.RevokeTokenTTL, &csrf.Key)
	if err != nil {
		return err
	}

	if err := e.store.User().UpdateEmail(ctx, user.ID, newEmail); err != nil {
		return storeFail(err)
	}
	user, err = e.store.User().ReadByID(ctx, user.ID)
	if err != nil {
		return storeFail(err)
	}

	e.auditInternal(ctx, audit, sso.AuditTypeUpdateEmail, sso.AuditMessageUpdateEmail)
	e.notifier.SendUpdateEmail(ctx, NotifyUpdateEmail{
		Service: *service, User: *user, OldEmail: oldEmail, Token: revokeToken,
	})
	return nil
}

// UpdateEmailRevoke undoes an email takeover: it disables the user and
// revokes every key they hold. Returns the number of entities disabled
// (keys revoked plus the user).
func (e *Engine) UpdateEmailRevoke(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string) (int64, error) {
	return e.revokeUser(ctx, service, audit, token, sso.TokenTypeUpdateEmailRevoke,
		sso.AuditTypeUpdateEmailRevoke, sso.AuditMessageUpdateEmailRevoke, sso.AuditTypeUpdateEmailRevokeError)
}

// UpdatePassword changes a user's password after verifying the current one.
// Users flagged password_require_update may proceed; completing the update
// is the one legitimate way to clear the flag.
func (e *Engine) UpdatePassword(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, userID uuid.UUID, password, newPassword string) error {
	user, err := e.userReadByID(ctx, audit, sso.AuditTypeUpdatePasswordError, userID)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeUpdatePasswordError, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	if !sso.PasswordVerify(user.PasswordHash, password) {
		e.auditInternal(ctx, audit, sso.AuditTypeUpdatePasswordError, sso.AuditMessagePasswordNotSetOrIncorrect)
		return sso.ErrBadRequest()
	}

	hashFuture := asyncx.Run(func() (string, error) { return sso.PasswordHash(newPassword) })

	csrf, err := e.csrfCreate(ctx, service, e.cfg.RevokeTokenTTL)
	if err != nil {
		return err
	}
	revokeToken, _, err := sso.TokenEncode(service.ID, user.ID, key.Value, sso.TokenTypeUpdatePasswordRevoke, e.cfg.RevokeTokenTTL, &csrf.Key)
	if err != nil {
		return err
	}

	hash, err := hashFuture.Await()
	if err != nil {
		return err
	}
	if err := e.store.User().UpdatePassword(ctx, user.ID, hash); err != nil {
		return storeFail(err)
	}
	if user.PasswordRequireUpdate {
		requireUpdate := false
		if _, err := e.store.User().Update(ctx, user.ID, sso.UserUpdate{PasswordRequireUpdate: &requireUpdate}); err != nil {
			return storeFail(err)
		}
	}
	user, err = e.store.User().ReadByID(ctx, user.ID)
	if err != nil {
		return storeFail(err)
	}

	e.auditInternal(ctx, audit, sso.AuditTypeUpdatePassword, sso.AuditMessageUpdatePassword)
	e.notifier.SendUpdatePassword(ctx, NotifyUpdatePassword{Service: *service, User: *user, Token: revokeToken})
	return nil
}

// UpdatePasswordRevoke undoes a password takeover, same blast radius as
// UpdateEmailRevoke.
func (e *Engine) UpdatePasswordRevoke(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string) (int64, error) {
	return e.revokeUser(ctx, service, audit, token, sso.TokenTypeUpdatePasswordRevoke,
		sso.AuditTypeUpdatePasswordRevoke, sso.AuditMessageUpdatePasswordRevoke, sso.AuditTypeUpdatePasswordRevokeError)
}

// revokeUser is the shared revoke path: redeem the single-use revoke token,
// disable the user, revoke all their keys. Unchecked reads throughout so a
// half-disabled account can still be locked down.
func (e *Engine) revokeUser(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, token string, tokenType sso.TokenType, okType sso.AuditType, okMsg sso.AuditMessage, errType sso.AuditType) (int64, error) {
	claims, err := sso.TokenDecodeUnsafe(token)
	if err != nil {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageTokenInvalidOrExpired)
		return 0, sso.ErrBadRequest()
	}

	user, err := e.userReadByIDUnchecked(ctx, audit, errType, claims.UserID)
	if err != nil {
		return 0, err
	}
	key, err := e.keyReadByUserUnchecked(ctx, audit, errType, service, user, sso.KeyTypeToken)
	if err != nil {
		return 0, err
	}

	_, csrfKey, err := sso.TokenDecode(service.ID, user.ID, tokenType, key.Value, token)
	if err != nil || csrfKey == nil {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageTokenInvalidOrExpired)
		return 0, sso.ErrBadRequest()
	}
	if err := e.csrfConsume(ctx, service.ID, *csrfKey); err != nil {
		e.auditInternal(ctx, audit, errType, sso.AuditMessageCsrfNotFoundOrUsed)
		return 0, sso.ErrBadRequest()
	}

	disabled := false
	if _, err := e.store.User().Update(ctx, user.ID, sso.UserUpdate{IsEnabled: &disabled}); err != nil {
		return 0, storeFail(err)
	}
	revoked := true
	count, err := e.store.Key().UpdateManyByUser(ctx, user.ID, sso.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked})
	if err != nil {
		return 0, storeFail(err)
	}

	e.auditInternal(ctx, audit, okType, okMsg)
	return count + 1, nil
}
