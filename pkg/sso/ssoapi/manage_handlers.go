package ssoapi

import (
	"encoding/json"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, sso.ErrBadRequest().WithDetail("reason", "malformed id").WithCause(err)
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, sso.ErrBadRequest().WithDetail("reason", "malformed "+name).WithCause(err)
	}
	return &id, nil
}

func queryUUIDs(c *fiber.Ctx, name string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, raw := range c.Context().QueryArgs().PeekMulti(name) {
		id, err := uuid.Parse(string(raw))
		if err != nil {
			return nil, sso.ErrBadRequest().WithDetail("reason", "malformed "+name).WithCause(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func queryBool(c *fiber.Ctx, name string) *bool {
	switch c.Query(name) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, sso.ErrBadRequest().WithDetail("reason", "malformed "+name).WithCause(err)
	}
	return &t, nil
}

// ───────────────────────────── Services ─────────────────────────────

type serviceCreateRequest struct {
	IsEnabled                  bool    `json:"is_enabled"`
	Name                       string  `json:"name"`
	URL                        string  `json:"url"`
	ProviderLocalURL           *string `json:"provider_local_url,omitempty"`
	ProviderGithubOauth2URL    *string `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOauth2URL *string `json:"provider_microsoft_oauth2_url,omitempty"`
}

type serviceUpdateRequest struct {
	IsEnabled                  *bool   `json:"is_enabled,omitempty"`
	Name                       *string `json:"name,omitempty"`
	URL                        *string `json:"url,omitempty"`
	ProviderLocalURL           *string `json:"provider_local_url,omitempty"`
	ProviderGithubOauth2URL    *string `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOauth2URL *string `json:"provider_microsoft_oauth2_url,omitempty"`
}

func (a *Api) handleServiceList(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}

	gt, err := queryUUID(c, "gt")
	if err != nil {
		return err
	}
	lt, err := queryUUID(c, "lt")
	if err != nil {
		return err
	}
	ids, err := queryUUIDs(c, "id")
	if err != nil {
		return err
	}

	services, err := a.manager.ServiceList(c.Context(), identity, sso.ServiceList{
		GT: gt, LT: lt, Limit: int64(c.QueryInt("limit", 0)), IDs: ids,
	})
	if err != nil {
		return err
	}
	return data(c, services)
}

func (a *Api) handleServiceCreate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	var req serviceCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" || req.URL == "" {
		return sso.ErrBadRequest().WithDetail("reason", "name and url are required")
	}

	service, err := a.manager.ServiceCreate(c.Context(), identity, sso.ServiceCreate{
		IsEnabled:                  req.IsEnabled,
		Name:                       req.Name,
		URL:                        req.URL,
		ProviderLocalURL:           req.ProviderLocalURL,
		ProviderGithubOauth2URL:    req.ProviderGithubOauth2URL,
		ProviderMicrosoftOauth2URL: req.ProviderMicrosoftOauth2URL,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dataResponse{Data: service})
}

func (a *Api) handleServiceRead(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	service, err := a.manager.ServiceRead(c.Context(), identity, id)
	if err != nil {
		return err
	}
	return data(c, service)
}

func (a *Api) handleServiceUpdate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req serviceUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	service, err := a.manager.ServiceUpdate(c.Context(), identity, id, sso.ServiceUpdate{
		IsEnabled:                  req.IsEnabled,
		Name:                       req.Name,
		URL:                        req.URL,
		ProviderLocalURL:           req.ProviderLocalURL,
		ProviderGithubOauth2URL:    req.ProviderGithubOauth2URL,
		ProviderMicrosoftOauth2URL: req.ProviderMicrosoftOauth2URL,
	})
	if err != nil {
		return err
	}
	return data(c, service)
}

func (a *Api) handleServiceDelete(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if err := a.manager.ServiceDelete(c.Context(), identity, id); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

// ───────────────────────────── Users ─────────────────────────────

type userCreateRequest struct {
	IsEnabled             bool    `json:"is_enabled"`
	Name                  string  `json:"name"`
	Email                 string  `json:"email"`
	Locale                string  `json:"locale"`
	Timezone              string  `json:"timezone"`
	PasswordAllowReset    bool    `json:"password_allow_reset"`
	PasswordRequireUpdate bool    `json:"password_require_update"`
	Password              *string `json:"password,omitempty"`
}

type userUpdateRequest struct {
	IsEnabled             *bool   `json:"is_enabled,omitempty"`
	Name                  *string `json:"name,omitempty"`
	Locale                *string `json:"locale,omitempty"`
	Timezone              *string `json:"timezone,omitempty"`
	PasswordAllowReset    *bool   `json:"password_allow_reset,omitempty"`
	PasswordRequireUpdate *bool   `json:"password_require_update,omitempty"`
}

func (a *Api) handleUserList(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}

	gt, err := queryUUID(c, "gt")
	if err != nil {
		return err
	}
	lt, err := queryUUID(c, "lt")
	if err != nil {
		return err
	}
	ids, err := queryUUIDs(c, "id")
	if err != nil {
		return err
	}
	var emailEq *string
	if email := c.Query("email_eq"); email != "" {
		emailEq = &email
	}

	users, err := a.manager.UserList(c.Context(), identity, sso.UserList{
		GT: gt, LT: lt, Limit: int64(c.QueryInt("limit", 0)), IDs: ids, EmailEq: emailEq,
	})
	if err != nil {
		return err
	}
	return data(c, users)
}

func (a *Api) handleUserCreate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	var req userCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" || req.Email == "" {
		return sso.ErrBadRequest().WithDetail("reason", "name and email are required")
	}

	user, err := a.manager.UserCreate(c.Context(), identity, authsrv.UserCreateRequest{
		IsEnabled:             req.IsEnabled,
		Name:                  req.Name,
		Email:                 req.Email,
		Locale:                req.Locale,
		Timezone:              req.Timezone,
		PasswordAllowReset:    req.PasswordAllowReset,
		PasswordRequireUpdate: req.PasswordRequireUpdate,
		Password:              req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(metaDataResponse{Meta: a.engine.PasswordMeta(), Data: user})
}

func (a *Api) handleUserRead(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	user, err := a.manager.UserRead(c.Context(), identity, id)
	if err != nil {
		return err
	}
	return data(c, user)
}

func (a *Api) handleUserUpdate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req userUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := a.manager.UserUpdate(c.Context(), identity, id, sso.UserUpdate{
		IsEnabled:             req.IsEnabled,
		Name:                  req.Name,
		Locale:                req.Locale,
		Timezone:              req.Timezone,
		PasswordAllowReset:    req.PasswordAllowReset,
		PasswordRequireUpdate: req.PasswordRequireUpdate,
	})
	if err != nil {
		return err
	}
	return data(c, user)
}

func (a *Api) handleUserDelete(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if err := a.manager.UserDelete(c.Context(), identity, id); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

// ───────────────────────────── Keys ─────────────────────────────

type keyCreateRequest struct {
	IsEnabled bool        `json:"is_enabled"`
	Type      sso.KeyType `json:"type"`
	Name      string      `json:"name"`
	ServiceID *uuid.UUID  `json:"service_id,omitempty"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
}

type keyUpdateRequest struct {
	IsEnabled *bool   `json:"is_enabled,omitempty"`
	IsRevoked *bool   `json:"is_revoked,omitempty"`
	Name      *string `json:"name,omitempty"`
}

func (a *Api) handleKeyList(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}

	gt, err := queryUUID(c, "gt")
	if err != nil {
		return err
	}
	lt, err := queryUUID(c, "lt")
	if err != nil {
		return err
	}
	ids, err := queryUUIDs(c, "id")
	if err != nil {
		return err
	}
	serviceID, err := queryUUID(c, "service_id")
	if err != nil {
		return err
	}
	userID, err := queryUUID(c, "user_id")
	if err != nil {
		return err
	}
	var typ *sso.KeyType
	if raw := c.Query("type"); raw != "" {
		kt := sso.KeyType(raw)
		if !kt.Valid() {
			return sso.ErrBadRequest().WithDetail("reason", "unknown key type")
		}
		typ = &kt
	}

	keys, err := a.manager.KeyList(c.Context(), identity, sso.KeyList{
		GT: gt, LT: lt, Limit: int64(c.QueryInt("limit", 0)), IDs: ids,
		IsEnabled: queryBool(c, "is_enabled"),
		IsRevoked: queryBool(c, "is_revoked"),
		Type:      typ,
		ServiceID: serviceID,
		UserID:    userID,
	})
	if err != nil {
		return err
	}
	return data(c, keys)
}

func (a *Api) handleKeyCreate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	var req keyCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return sso.ErrBadRequest().WithDetail("reason", "name is required")
	}

	key, err := a.manager.KeyCreate(c.Context(), identity, authsrv.KeyCreateRequest{
		IsEnabled: req.IsEnabled,
		Type:      req.Type,
		Name:      req.Name,
		ServiceID: req.ServiceID,
		UserID:    req.UserID,
	})
	if err != nil {
		return err
	}
	// The secret value appears in this response and never again.
	return c.Status(fiber.StatusCreated).JSON(dataResponse{Data: key})
}

func (a *Api) handleKeyRead(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	key, err := a.manager.KeyRead(c.Context(), identity, id)
	if err != nil {
		return err
	}
	return data(c, key)
}

func (a *Api) handleKeyUpdate(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req keyUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsRevoked != nil && !*req.IsRevoked {
		return sso.ErrBadRequest().WithDetail("reason", "revocation cannot be undone")
	}

	key, err := a.manager.KeyUpdate(c.Context(), identity, id, sso.KeyUpdate{
		IsEnabled: req.IsEnabled,
		IsRevoked: req.IsRevoked,
		Name:      req.Name,
	})
	if err != nil {
		return err
	}
	return data(c, key)
}

func (a *Api) handleKeyDelete(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if err := a.manager.KeyDelete(c.Context(), identity, id); err != nil {
		return err
	}
	return data(c, fiber.Map{})
}

// ───────────────────────────── Audits ─────────────────────────────

type auditCreateRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (a *Api) handleAuditList(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}

	createdGE, err := queryTime(c, "ge")
	if err != nil {
		return err
	}
	createdLE, err := queryTime(c, "le")
	if err != nil {
		return err
	}
	offsetID, err := queryUUID(c, "offset_id")
	if err != nil {
		return err
	}
	var types []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("type") {
		types = append(types, string(raw))
	}

	audits, err := a.manager.AuditList(c.Context(), identity, sso.AuditList{
		CreatedGE: createdGE,
		CreatedLE: createdLE,
		OffsetID:  offsetID,
		Limit:     int64(c.QueryInt("limit", 0)),
		Type:      types,
	})
	if err != nil {
		return err
	}
	return data(c, audits)
}

func (a *Api) handleAuditCreate(c *fiber.Ctx) error {
	_, audit, err := a.identity(c)
	if err != nil {
		return err
	}
	var req auditCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		return sso.ErrBadRequest().WithDetail("reason", "type is required")
	}

	created, err := a.manager.AuditCreate(c.Context(), audit, sso.AuditData{Type: req.Type, Data: req.Data})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dataResponse{Data: created})
}

func (a *Api) handleAuditRead(c *fiber.Ctx) error {
	identity, _, err := a.identity(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	audit, err := a.manager.AuditRead(c.Context(), identity, id)
	if err != nil {
		return err
	}
	return data(c, audit)
}
