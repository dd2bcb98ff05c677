package ssoapi

import (
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type keyRequest struct {
	Key   string         `json:"key"`
	Audit *sso.AuditData `json:"audit,omitempty"`
}

type tokenRequest struct {
	Token string         `json:"token"`
	Audit *sso.AuditData `json:"audit,omitempty"`
}

type totpRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Totp   string    `json:"totp"`
}

type csrfVerifyRequest struct {
	Key string `json:"key"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type updateEmailRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Password string    `json:"password"`
	NewEmail string    `json:"new_email"`
}

type updatePasswordRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Password    string    `json:"password"`
	NewPassword string    `json:"new_password"`
}

type oauth2CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return sso.ErrBadRequest().WithDetail("reason", "malformed request body").WithCause(err)
	}
	return nil
}

func (a *Api) handleKeyVerify(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req keyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return sso.ErrBadRequest().WithDetail("reason", "key is required")
	}

	userKey, err := a.engine.KeyVerify(c.Context(), service, audit, req.Key, req.Audit)
	if err != nil {
		return err
	}
	return data(c, userKey)
}

func (a *Api) handleKeyRevoke(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req keyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return sso.ErrBadRequest().WithDetail("reason", "key is required")
	}

	if err := a.engine.KeyRevoke(c.Context(), service, audit, req.Key, req.Audit); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

func (a *Api) handleTokenVerify(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}

	access, err := a.engine.TokenVerify(c.Context(), service, audit, req.Token, req.Audit)
	if err != nil {
		return err
	}
	return data(c, access)
}

func (a *Api) handleTokenRefresh(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}

	token, err := a.engine.TokenRefresh(c.Context(), service, audit, req.Token, req.Audit)
	if err != nil {
		return err
	}
	return data(c, token)
}

func (a *Api) handleTokenRevoke(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}

	if err := a.engine.TokenRevoke(c.Context(), service, audit, req.Token, req.Audit); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

func (a *Api) handleTotp(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req totpRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UserID == uuid.Nil || req.Totp == "" {
		return sso.ErrBadRequest().WithDetail("reason", "user_id and totp are required")
	}

	if err := a.engine.TotpVerify(c.Context(), service, audit, req.UserID, req.Totp); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

func (a *Api) handleCsrfCreate(c *fiber.Ctx) error {
	service, _, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}

	ttl := time.Duration(c.QueryInt("expires_s", 0)) * time.Second
	csrf, err := a.engine.CsrfCreate(c.Context(), service, ttl)
	if err != nil {
		return err
	}
	return data(c, csrf)
}

func (a *Api) handleCsrfVerify(c *fiber.Ctx) error {
	service, _, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req csrfVerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return sso.ErrBadRequest().WithDetail("reason", "key is required")
	}

	if err := a.engine.CsrfVerify(c.Context(), service, req.Key); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

func (a *Api) handleLogin(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return sso.ErrBadRequest().WithDetail("reason", "email and password are required")
	}

	token, err := a.engine.Login(c.Context(), service, audit, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(metaDataResponse{Meta: a.engine.PasswordMeta(), Data: token})
}

func (a *Api) handleResetPassword(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" {
		return sso.ErrBadRequest().WithDetail("reason", "email is required")
	}

	// Always 200: the response never reveals whether the email exists.
	a.engine.ResetPassword(c.Context(), service, audit, req.Email)
	return data(c, fiber.Map{})
}

func (a *Api) handleResetPasswordConfirm(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req resetPasswordConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}
	if err := a.manager.PasswordValidate(req.Password); err != nil {
		return err
	}

	if err := a.engine.ResetPasswordConfirm(c.Context(), service, audit, req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(metaDataResponse{Meta: a.engine.PasswordMeta(), Data: fiber.Map{}})
}

func (a *Api) handleUpdateEmail(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req updateEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UserID == uuid.Nil || req.Password == "" || req.NewEmail == "" {
		return sso.ErrBadRequest().WithDetail("reason", "user_id, password and new_email are required")
	}

	if err := a.engine.UpdateEmail(c.Context(), service, audit, req.UserID, req.Password, req.NewEmail); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

func (a *Api) handleUpdateEmailRevoke(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}

	count, err := a.engine.UpdateEmailRevoke(c.Context(), service, audit, req.Token)
	if err != nil {
		return err
	}
	return data(c, fiber.Map{"revoked": count})
}

func (a *Api) handleUpdatePassword(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UserID == uuid.Nil || req.Password == "" {
		return sso.ErrBadRequest().WithDetail("reason", "user_id and password are required")
	}
	if err := a.manager.PasswordValidate(req.NewPassword); err != nil {
		return err
	}

	if err := a.engine.UpdatePassword(c.Context(), service, audit, req.UserID, req.Password, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(metaDataResponse{Meta: a.engine.PasswordMeta(), Data: fiber.Map{}})
}

func (a *Api) handleUpdatePasswordRevoke(c *fiber.Ctx) error {
	service, audit, err := a.serviceIdentity(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return sso.ErrBadRequest().WithDetail("reason", "token is required")
	}

	count, err := a.engine.UpdatePasswordRevoke(c.Context(), service, audit, req.Token)
	if err != nil {
		return err
	}
	return data(c, fiber.Map{"revoked": count})
}

func (a *Api) handleOauth2URL(provider func() authsrv.Oauth2Exchanger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		service, _, err := a.serviceIdentity(c)
		if err != nil {
			return err
		}
		p := provider()
		if p == nil {
			return sso.ErrBadRequest().WithDetail("reason", "provider not configured")
		}

		url, err := a.engine.Oauth2URL(c.Context(), service, p)
		if err != nil {
			return err
		}
		return data(c, fiber.Map{"url": url})
	}
}

func (a *Api) handleOauth2Callback(provider func() authsrv.Oauth2Exchanger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		service, audit, err := a.serviceIdentity(c)
		if err != nil {
			return err
		}
		p := provider()
		if p == nil {
			return sso.ErrBadRequest().WithDetail("reason", "provider not configured")
		}
		var req oauth2CallbackRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Code == "" || req.State == "" {
			return sso.ErrBadRequest().WithDetail("reason", "code and state are required")
		}

		token, err := a.engine.Oauth2Callback(c.Context(), service, audit, p, req.Code, req.State)
		if err != nil {
			return err
		}
		return data(c, token)
	}
}
