package ssoapi

import (
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gofiber/fiber/v2"
)

const (
	localsIdentity = "sso_identity"
	localsAudit    = "sso_audit"
)

// authenticate extracts the audit meta and resolves the Authorization
// header before any handler runs. The header carries the key value verbatim,
// no Bearer prefix. A request without a user agent or peer address is
// rejected outright; every audit record must name its origin.
func (a *Api) authenticate(c *fiber.Ctx) error {
	userAgent := c.Get(fiber.HeaderUserAgent)
	remote := c.IP()
	if userAgent == "" || remote == "" {
		return sso.ErrBadRequest().WithDetail("reason", "user agent and remote address are required")
	}
	meta := sso.AuditMeta{UserAgent: userAgent, Remote: remote}
	if forwarded := c.Get(fiber.HeaderForwarded); forwarded != "" {
		meta.Forwarded = &forwarded
	}

	identity, audit, err := a.auth.Authenticate(c.Context(), meta, c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	c.Locals(localsIdentity, identity)
	c.Locals(localsAudit, audit)
	return c.Next()
}

// identity returns the resolved caller, rejecting anonymous requests.
func (a *Api) identity(c *fiber.Ctx) (*authsrv.Identity, *sso.AuditBuilder, error) {
	identity, ok := c.Locals(localsIdentity).(*authsrv.Identity)
	if !ok {
		return nil, nil, sso.ErrUnauthorized()
	}
	if identity.Kind == authsrv.IdentityAbsent {
		return nil, nil, sso.ErrUnauthorized()
	}
	audit, _ := c.Locals(localsAudit).(*sso.AuditBuilder)
	return identity, audit, nil
}

// serviceIdentity returns the calling service. Auth operations are always
// service-scoped; a root key has no service to act for.
func (a *Api) serviceIdentity(c *fiber.Ctx) (*sso.Service, *sso.AuditBuilder, error) {
	identity, audit, err := a.identity(c)
	if err != nil {
		return nil, nil, err
	}
	if identity.Kind != authsrv.IdentityService {
		return nil, nil, sso.ErrBadRequest().WithDetail("reason", "operation requires a service key")
	}
	return identity.Service, audit, nil
}
