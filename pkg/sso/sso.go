package sso

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Service is an integration tenant. Every non-root operation is scoped to
// exactly one service.
type Service struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsEnabled bool      `json:"is_enabled"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`

	// Optional URLs a service exposes for auth provider callbacks.
	ProviderLocalURL           *string `json:"provider_local_url,omitempty"`
	ProviderGithubOauth2URL    *string `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOauth2URL *string `json:"provider_microsoft_oauth2_url,omitempty"`
}

type ServiceCreate struct {
	IsEnabled                  bool
	Name                       string
	URL                        string
	ProviderLocalURL           *string
	ProviderGithubOauth2URL    *string
	ProviderMicrosoftOauth2URL *string
}

type ServiceUpdate struct {
	IsEnabled                  *bool
	Name                       *string
	URL                        *string
	ProviderLocalURL           *string
	ProviderGithubOauth2URL    *string
	ProviderMicrosoftOauth2URL *string
}

// ServiceList is a keyset-paginated service query. When only LT is set the
// store fetches descending and reverses, so results are always ascending by id.
type ServiceList struct {
	GT    *uuid.UUID
	LT    *uuid.UUID
	Limit int64
	IDs   []uuid.UUID
}

// User is an end identity. Users are global; access is mediated through keys.
type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsEnabled bool      `json:"is_enabled"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Locale    string    `json:"locale"`
	Timezone  string    `json:"timezone"`

	PasswordAllowReset    bool `json:"password_allow_reset"`
	PasswordRequireUpdate bool `json:"password_require_update"`

	PasswordHash *string `json:"-"`
}

type UserCreate struct {
	IsEnabled             bool
	Name                  string
	Email                 string
	Locale                string
	Timezone              string
	PasswordAllowReset    bool
	PasswordRequireUpdate bool
	PasswordHash          *string
}

type UserUpdate struct {
	IsEnabled             *bool
	Name                  *string
	Locale                *string
	Timezone              *string
	PasswordAllowReset    *bool
	PasswordRequireUpdate *bool
}

type UserList struct {
	GT      *uuid.UUID
	LT      *uuid.UUID
	Limit   int64
	IDs     []uuid.UUID
	EmailEq *string
}

// KeyType distinguishes the credential shapes a key can take.
type KeyType string

const (
	// KeyTypeKey is a bearer API key verified directly by value.
	KeyTypeKey KeyType = "Key"
	// KeyTypeToken is the HMAC signing secret for a (service, user) token pair.
	KeyTypeToken KeyType = "Token"
	// KeyTypeTotp is a base32 shared secret for RFC 6238 codes.
	KeyTypeTotp KeyType = "Totp"
)

// Valid reports whether t is a known key type.
func (t KeyType) Valid() bool {
	switch t {
	case KeyTypeKey, KeyTypeToken, KeyTypeTotp:
		return true
	}
	return false
}

// Key is a credential binding. Root keys have neither service nor user,
// service keys have only a service, user keys have both.
// The secret value is never carried here; see KeyWithValue.
type Key struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsEnabled bool       `json:"is_enabled"`
	IsRevoked bool       `json:"is_revoked"`
	Type      KeyType    `json:"type"`
	Name      string     `json:"name"`
	ServiceID *uuid.UUID `json:"service_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
}

// KeyWithValue is a key together with its secret value. Returned only on
// create and on the internal read paths that need the secret.
type KeyWithValue struct {
	Key
	Value string `json:"value"`
}

type KeyCreate struct {
	IsEnabled bool
	IsRevoked bool
	Type      KeyType
	Name      string
	Value     string
	ServiceID *uuid.UUID
	UserID    *uuid.UUID
}

// KeyUpdate never clears IsRevoked; revocation is terminal.
type KeyUpdate struct {
	IsEnabled *bool
	IsRevoked *bool
	Name      *string
}

type KeyList struct {
	GT        *uuid.UUID
	LT        *uuid.UUID
	Limit     int64
	IDs       []uuid.UUID
	IsEnabled *bool
	IsRevoked *bool
	Type      *KeyType

	// ServiceID masks results to one service. Service-authenticated
	// callers always carry this; root callers may leave it nil.
	ServiceID *uuid.UUID
	UserID    *uuid.UUID
}

// Csrf is a single-use nonce bound to a service. Reading one deletes it.
type Csrf struct {
	CreatedAt time.Time `json:"created_at"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	TTL       time.Time `json:"ttl"`
	ServiceID uuid.UUID `json:"service_id"`
}

type CsrfCreate struct {
	Key       string
	Value     string
	TTL       time.Time
	ServiceID uuid.UUID
}

// UserToken is the access/refresh pair minted on login, refresh and OAuth2.
type UserToken struct {
	User                User   `json:"user"`
	AccessToken         string `json:"access_token"`
	AccessTokenExpires  int64  `json:"access_token_expires"`
	RefreshToken        string `json:"refresh_token"`
	RefreshTokenExpires int64  `json:"refresh_token_expires"`
}

// UserTokenAccess is the verify-side view of a token.
type UserTokenAccess struct {
	User               User   `json:"user"`
	AccessToken        string `json:"access_token"`
	AccessTokenExpires int64  `json:"access_token_expires"`
}

// UserKey is the verify-side view of a bearer API key.
type UserKey struct {
	User User   `json:"user"`
	Key  string `json:"key"`
}

// UserPasswordMeta is the password policy surfaced alongside
// password-accepting responses.
type UserPasswordMeta struct {
	PasswordMinLength int `json:"password_min_length"`
	PasswordMaxLength int `json:"password_max_length"`
}

// KeyValueGenerate returns a new 32-byte random secret in hex.
func KeyValueGenerate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrInternal(err)
	}
	return hex.EncodeToString(buf), nil
}

// TotpSecretGenerate returns a new 20-byte random secret in base32, the
// alphabet authenticator apps expect.
func TotpSecretGenerate() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrInternal(err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// CsrfKeyGenerate returns a new CSRF key. CSRFs are keyed by string rather
// than uuid; the value column mirrors the key.
func CsrfKeyGenerate() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrInternal(err)
	}
	return hex.EncodeToString(buf), nil
}
