package sso

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType tags a signed claim set with its intended use. A token presented
// to an endpoint expecting a different type is rejected.
type TokenType string

const (
	TokenTypeAccess               TokenType = "access_token"
	TokenTypeRefresh              TokenType = "refresh_token"
	TokenTypeResetPassword        TokenType = "reset_password_token"
	TokenTypeUpdateEmailRevoke    TokenType = "update_email_revoke_token"
	TokenTypeUpdatePasswordRevoke TokenType = "update_password_revoke_token"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeResetPassword,
		TokenTypeUpdateEmailRevoke, TokenTypeUpdatePasswordRevoke:
		return true
	}
	return false
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"type"`
	Csrf *string   `json:"csrf,omitempty"`
}

// UnsafeClaims are claims extracted without signature verification. Used
// only to locate the signing key before the safe decode; never treated as
// authenticating.
type UnsafeClaims struct {
	ServiceID uuid.UUID
	UserID    uuid.UUID
	Type      TokenType
}

// TokenEncode signs a claim set with HS256 using the user token key's value
// as the secret. Returns the compact token and its unix expiry.
func TokenEncode(serviceID, userID uuid.UUID, secret string, typ TokenType, ttl time.Duration, csrf *string) (string, int64, error) {
	exp := time.Now().Add(ttl)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serviceID.String(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
		Csrf: csrf,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", 0, ErrInternal(err)
	}
	return token, exp.Unix(), nil
}

// TokenDecode verifies signature, issuer, subject, type and expiry, and
// returns the expiry and the csrf key if the token carries one. Any
// mismatch is a bad request.
func TokenDecode(serviceID, userID uuid.UUID, typ TokenType, secret, token string) (int64, *string, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadRequest().WithDetail("reason", "unexpected signing method")
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(serviceID.String()),
		jwt.WithSubject(userID.String()),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, nil, ErrBadRequest().WithDetail("reason", "token invalid or expired").WithCause(err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return 0, nil, ErrBadRequest().WithDetail("reason", "token invalid or expired")
	}
	if claims.Type != typ {
		return 0, nil, ErrBadRequest().WithDetail("reason", "unexpected token type")
	}

	return claims.ExpiresAt.Unix(), claims.Csrf, nil
}

// TokenDecodeUnsafe extracts claims without verifying the signature.
func TokenDecodeUnsafe(token string) (*UnsafeClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrBadRequest().WithDetail("reason", "token malformed").WithCause(err)
	}

	serviceID, err := uuid.Parse(claims.Issuer)
	if err != nil {
		return nil, ErrBadRequest().WithDetail("reason", "token issuer malformed")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrBadRequest().WithDetail("reason", "token subject malformed")
	}
	if !claims.Type.Valid() {
		return nil, ErrBadRequest().WithDetail("reason", "unknown token type")
	}

	return &UnsafeClaims{ServiceID: serviceID, UserID: userID, Type: claims.Type}, nil
}
