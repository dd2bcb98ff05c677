// Package ssoapi exposes the authentication engine and the administrative
// CRUD surface over HTTP.
package ssoapi

import (
	"github.com/gatekit/gatekit/pkg/errx"
	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gofiber/fiber/v2"
)

// Api wires the engine, manager and authenticator into fiber handlers.
type Api struct {
	engine  *authsrv.Engine
	manager *authsrv.Manager
	auth    *authsrv.Authenticator

	github    authsrv.Oauth2Exchanger
	microsoft authsrv.Oauth2Exchanger
}

// Option configures optional Api collaborators.
type Option func(*Api)

// WithGithub enables the GitHub OAuth2 endpoints.
func WithGithub(provider authsrv.Oauth2Exchanger) Option {
	return func(a *Api) { a.github = provider }
}

// WithMicrosoft enables the Microsoft OAuth2 endpoints.
func WithMicrosoft(provider authsrv.Oauth2Exchanger) Option {
	return func(a *Api) { a.microsoft = provider }
}

func New(engine *authsrv.Engine, manager *authsrv.Manager, auth *authsrv.Authenticator, opts ...Option) *Api {
	a := &Api{engine: engine, manager: manager, auth: auth}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes mounts every endpoint under /v1.
func (a *Api) RegisterRoutes(app *fiber.App) {
	app.Get("/v1/ping", a.handlePing)

	v1 := app.Group("/v1", a.authenticate)

	auth := v1.Group("/auth")
	auth.Post("/key/verify", a.handleKeyVerify)
	auth.Post("/key/revoke", a.handleKeyRevoke)
	auth.Post("/token/verify", a.handleTokenVerify)
	auth.Post("/token/refresh", a.handleTokenRefresh)
	auth.Post("/token/revoke", a.handleTokenRevoke)
	auth.Post("/totp", a.handleTotp)
	auth.Get("/csrf", a.handleCsrfCreate)
	auth.Post("/csrf", a.handleCsrfVerify)

	local := auth.Group("/provider/local")
	local.Post("/login", a.handleLogin)
	local.Post("/reset-password", a.handleResetPassword)
	local.Post("/reset-password/confirm", a.handleResetPasswordConfirm)
	local.Post("/update-email", a.handleUpdateEmail)
	local.Post("/update-email/revoke", a.handleUpdateEmailRevoke)
	local.Post("/update-password", a.handleUpdatePassword)
	local.Post("/update-password/revoke", a.handleUpdatePasswordRevoke)

	auth.Get("/provider/github/oauth2", a.handleOauth2URL(func() authsrv.Oauth2Exchanger { return a.github }))
	auth.Post("/provider/github/oauth2", a.handleOauth2Callback(func() authsrv.Oauth2Exchanger { return a.github }))
	auth.Get("/provider/microsoft/oauth2", a.handleOauth2URL(func() authsrv.Oauth2Exchanger { return a.microsoft }))
	auth.Post("/provider/microsoft/oauth2", a.handleOauth2Callback(func() authsrv.Oauth2Exchanger { return a.microsoft }))

	v1.Get("/audit", a.handleAuditList)
	v1.Post("/audit", a.handleAuditCreate)
	v1.Get("/audit/:id", a.handleAuditRead)

	v1.Get("/key", a.handleKeyList)
	v1.Post("/key", a.handleKeyCreate)
	v1.Get("/key/:id", a.handleKeyRead)
	v1.Patch("/key/:id", a.handleKeyUpdate)
	v1.Delete("/key/:id", a.handleKeyDelete)

	v1.Get("/service", a.handleServiceList)
	v1.Post("/service", a.handleServiceCreate)
	v1.Get("/service/:id", a.handleServiceRead)
	v1.Patch("/service/:id", a.handleServiceUpdate)
	v1.Delete("/service/:id", a.handleServiceDelete)

	v1.Get("/user", a.handleUserList)
	v1.Post("/user", a.handleUserCreate)
	v1.Get("/user/:id", a.handleUserRead)
	v1.Patch("/user/:id", a.handleUserUpdate)
	v1.Delete("/user/:id", a.handleUserDelete)
}

func (a *Api) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// dataResponse is the {data} envelope every entity endpoint returns.
type dataResponse struct {
	Data interface{} `json:"data"`
}

// metaDataResponse is the {meta, data} envelope for password-accepting
// endpoints, carrying the password policy alongside the payload.
type metaDataResponse struct {
	Meta interface{} `json:"meta"`
	Data interface{} `json:"data"`
}

func data(c *fiber.Ctx, payload interface{}) error {
	return c.JSON(dataResponse{Data: payload})
}

// ErrorHandler is the fiber global error handler. It surfaces errx errors
// with their registered status and hides everything else behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
			"code":  "FIBER_ERROR",
		})
	}

	if e, ok := err.(*errx.Error); ok {
		if e.HTTPStatus >= 500 {
			logx.WithFields(logx.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).Errorf("request error: %v", err)
		}
		response := fiber.Map{
			"error": e.Message,
			"code":  e.Code,
			"type":  string(e.Type),
		}
		if len(e.Details) > 0 {
			response["details"] = e.Details
		}
		return c.Status(e.HTTPStatus).JSON(response)
	}

	logx.WithFields(logx.Fields{
		"path":   c.Path(),
		"method": c.Method(),
	}).Errorf("unhandled error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
		"code":  "INTERNAL",
	})
}
