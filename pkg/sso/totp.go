package sso

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// TotpValidate checks a 6-digit RFC 6238 code against the base32 secret
// stored in the user's TOTP key. Accepts one period of clock skew.
func TotpValidate(secret, code string) bool {
	return totp.Validate(code, secret)
}

// TotpGenerate derives the current code for a secret. Used by tests and by
// key provisioning responses.
func TotpGenerate(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", ErrBadRequest().WithDetail("reason", "invalid totp secret").WithCause(err)
	}
	return code, nil
}
