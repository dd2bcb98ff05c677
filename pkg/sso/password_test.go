package sso_test

import (
	"strings"
	"testing"

	"github.com/gatekit/gatekit/pkg/sso"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := sso.PasswordHash("guest-password")
	if err != nil {
		t.Fatalf("PasswordHash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected argon2id PHC hash, got %q", hash)
	}

	if !sso.PasswordVerify(&hash, "guest-password") {
		t.Error("expected correct password to verify")
	}
	if sso.PasswordVerify(&hash, "wrong-password") {
		t.Error("expected wrong password to fail")
	}
}

func TestPasswordHashIsSalted(t *testing.T) {
	h1, err := sso.PasswordHash("same-password")
	if err != nil {
		t.Fatalf("PasswordHash failed: %v", err)
	}
	h2, err := sso.PasswordHash("same-password")
	if err != nil {
		t.Fatalf("PasswordHash failed: %v", err)
	}
	if h1 == h2 {
		t.Error("expected distinct hashes for the same password")
	}
}

func TestPasswordVerifyNilHash(t *testing.T) {
	if sso.PasswordVerify(nil, "anything") {
		t.Error("expected nil hash to fail verification")
	}
}

func TestPasswordVerifyMalformedHash(t *testing.T) {
	malformed := "$bcrypt$not-a-real-hash"
	if sso.PasswordVerify(&malformed, "anything") {
		t.Error("expected malformed hash to fail verification")
	}
}
