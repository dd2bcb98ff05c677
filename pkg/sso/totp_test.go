package sso_test

import (
	"testing"

	"github.com/gatekit/gatekit/pkg/sso"
)

func TestTotpGenerateAndValidate(t *testing.T) {
	secret, err := sso.TotpSecretGenerate()
	if err != nil {
		t.Fatalf("TotpSecretGenerate failed: %v", err)
	}

	code, err := sso.TotpGenerate(secret)
	if err != nil {
		t.Fatalf("TotpGenerate failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if !sso.TotpValidate(secret, code) {
		t.Error("expected current code to validate")
	}
	if sso.TotpValidate(secret, "000000") && code != "000000" {
		t.Error("expected wrong code to fail")
	}
}

func TestTotpGenerateInvalidSecret(t *testing.T) {
	if _, err := sso.TotpGenerate("!!not-base32!!"); err == nil {
		t.Error("expected invalid secret to fail")
	}
}
