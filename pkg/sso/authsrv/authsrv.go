// Package authsrv implements the authentication engine: login, token
// verify/refresh/revoke, key verify/revoke, reset and update flows, TOTP
// and OAuth2 login, over the store contract.
package authsrv

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

// Config carries token lifetimes and the password policy.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RevokeTokenTTL  time.Duration
	ResetTokenTTL   time.Duration

	PasswordMinLength int
	PasswordMaxLength int
}

// Engine is the authentication state machine. All operations assume the
// calling service and audit builder were resolved by the Authenticator.
type Engine struct {
	store    sso.Store
	notifier Notifier
	cfg      Config
}

func NewEngine(st sso.Store, notifier Notifier, cfg Config) *Engine {
	return &Engine{store: st, notifier: notifier, cfg: cfg}
}

// PasswordMeta is the policy surfaced with password-accepting responses.
func (e *Engine) PasswordMeta() sso.UserPasswordMeta {
	return sso.UserPasswordMeta{
		PasswordMinLength: e.cfg.PasswordMinLength,
		PasswordMaxLength: e.cfg.PasswordMaxLength,
	}
}

// auditInternal records a terminal decision. An audit write failure never
// changes the operation outcome; the credential state is already settled.
func (e *Engine) auditInternal(ctx context.Context, audit *sso.AuditBuilder, typ sso.AuditType, msg sso.AuditMessage) {
	if _, err := audit.CreateInternal(ctx, e.store.Audit(), typ, msg); err != nil {
		logx.WithError(err).WithField("audit_type", string(typ)).Warn("authsrv: audit write failed")
	}
}

// auditData records a client-supplied annotation when one was attached.
func (e *Engine) auditData(ctx context.Context, audit *sso.AuditBuilder, data *sso.AuditData) {
	if data == nil {
		return
	}
	if _, err := audit.CreateData(ctx, e.store.Audit(), *data); err != nil {
		logx.WithError(err).Warn("authsrv: audit data write failed")
	}
}

// storeFail maps a store failure onto the API error surface.
func storeFail(err error) error {
	if store.IsNotFound(err) {
		return sso.ErrNotFound()
	}
	if store.IsConflict(err) {
		return sso.ErrConflict()
	}
	return sso.ErrInternal(err)
}

// encodeUserToken mints an access/refresh pair. The refresh token carries a
// fresh single-use CSRF; the access token carries none.
func (e *Engine) encodeUserToken(ctx context.Context, service *sso.Service, user *sso.User, key *sso.KeyWithValue) (*sso.UserToken, error) {
	csrf, err := e.csrfCreate(ctx, service, e.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	accessToken, accessExp, err := sso.TokenEncode(service.ID, user.ID, key.Value, sso.TokenTypeAccess, e.cfg.AccessTokenTTL, nil)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := sso.TokenEncode(service.ID, user.ID, key.Value, sso.TokenTypeRefresh, e.cfg.RefreshTokenTTL, &csrf.Key)
	if err != nil {
		return nil, err
	}

	return &sso.UserToken{
		User:                *user,
		AccessToken:         accessToken,
		AccessTokenExpires:  accessExp,
		RefreshToken:        refreshToken,
		RefreshTokenExpires: refreshExp,
	}, nil
}

func (e *Engine) csrfCreate(ctx context.Context, service *sso.Service, ttl time.Duration) (*sso.Csrf, error) {
	key, err := sso.CsrfKeyGenerate()
	if err != nil {
		return nil, err
	}
	csrf, err := e.store.Csrf().Create(ctx, sso.CsrfCreate{
		Key:       key,
		Value:     key,
		TTL:       time.Now().Add(ttl),
		ServiceID: service.ID,
	})
	if err != nil {
		return nil, storeFail(err)
	}
	return csrf, nil
}

// csrfConsume redeems a single-use CSRF. It fails when the record is gone,
// expired, or bound to a different service.
func (e *Engine) csrfConsume(ctx context.Context, serviceID uuid.UUID, key string) error {
	csrf, err := e.store.Csrf().ReadOpt(ctx, key)
	if err != nil {
		return storeFail(err)
	}
	if csrf == nil || csrf.ServiceID != serviceID {
		return sso.ErrBadRequest().WithDetail("reason", "csrf not found or used")
	}
	return nil
}
