package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/google/uuid"
)

// Oauth2Exchanger is the provider-side half of an OAuth2 flow: issuing the
// redirect URL and exchanging a callback code for the asserted email.
type Oauth2Exchanger interface {
	AuthCodeURL(state string) string
	ExchangeEmail(ctx context.Context, code string) (string, error)
}

// Oauth2URL starts an OAuth2 flow. The state nonce is a CSRF bound to the
// calling service, so the callback can recover which service initiated it.
func (e *Engine) Oauth2URL(ctx context.Context, service *sso.Service, provider Oauth2Exchanger) (string, error) {
	csrf, err := e.csrfCreate(ctx, service, CsrfTTLDefault)
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(csrf.Key), nil
}

// Oauth2Callback completes an OAuth2 flow: it consumes the state nonce,
// exchanges the code for the provider-asserted email, and logs that user in
// under the calling service.
func (e *Engine) Oauth2Callback(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, provider Oauth2Exchanger, code, state string) (*sso.UserToken, error) {
	csrf, err := e.store.Csrf().ReadOpt(ctx, state)
	if err != nil {
		return nil, storeFail(err)
	}
	if csrf == nil {
		e.auditInternal(ctx, audit, sso.AuditTypeOauth2LoginError, sso.AuditMessageCsrfNotFoundOrUsed)
		return nil, sso.ErrBadRequest()
	}

	email, err := provider.ExchangeEmail(ctx, code)
	if err != nil {
		e.auditInternal(ctx, audit, sso.AuditTypeOauth2LoginError, sso.AuditMessageTokenInvalidOrExpired)
		return nil, sso.ErrBadRequest().WithCause(err)
	}

	return e.Oauth2Login(ctx, service, audit, csrf.ServiceID, email)
}

// Oauth2Login mints a token pair for the provider-asserted email. The
// calling service must be the one that initiated the flow.
func (e *Engine) Oauth2Login(ctx context.Context, service *sso.Service, audit *sso.AuditBuilder, initiatingServiceID uuid.UUID, email string) (*sso.UserToken, error) {
	if service.ID != initiatingServiceID {
		e.auditInternal(ctx, audit, sso.AuditTypeOauth2LoginError, sso.AuditMessageServiceMismatch)
		return nil, sso.ErrBadRequest()
	}

	service, err := e.store.Service().ReadByID(ctx, service.ID)
	if err != nil {
		return nil, storeFail(err)
	}
	if !service.IsEnabled {
		e.auditInternal(ctx, audit, sso.AuditTypeOauth2LoginError, sso.AuditMessageServiceDisabled)
		return nil, sso.ErrBadRequest()
	}

	user, err := e.userReadByEmail(ctx, audit, sso.AuditTypeOauth2LoginError, email)
	if err != nil {
		return nil, err
	}
	key, err := e.keyReadByUser(ctx, audit, sso.AuditTypeOauth2LoginError, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, err
	}

	token, err := e.encodeUserToken(ctx, service, user, key)
	if err != nil {
		return nil, err
	}
	e.auditInternal(ctx, audit, sso.AuditTypeOauth2Login, sso.AuditMessageOauth2Login)
	return token, nil
}
