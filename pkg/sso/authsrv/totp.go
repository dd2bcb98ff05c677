package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/google/uuid"
)

// TotpVerify checks an RFC 6238 code against the user's TOTP key.
func (e *Engine) TotpVerify(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, userID uuid.UUID, code string) error {
	user, err := e.userReadByID(ctx, audit, sso.AuditTypeTotpError, userID)
	if err != nil {
		return err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeTotpError, service, user, sso.KeyTypeTotp)
	if err != nil {
		return err
	}

	if !sso.TotpValidate(key.Value, code) {
		e.auditInternal(ctx, audit, sso.AuditTypeTotpError, sso.AuditMessageTotpInvalid)
		return sso.ErrBadRequest()
	}
	return nil
}
