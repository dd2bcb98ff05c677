package authsrv_test

import (
	"context"
	"testing"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
)

func seedRootKey(t *testing.T, f *fixture) *sso.KeyWithValue {
	t.Helper()
	value, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	key, err := f.store.Key().Create(context.Background(), sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: "Root", Value: value,
	})
	if err != nil {
		t.Fatalf("key create: %v", err)
	}
	return key
}

func seedServiceKey(t *testing.T, f *fixture, service *sso.Service) *sso.KeyWithValue {
	t.Helper()
	value, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	key, err := f.store.Key().Create(context.Background(), sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: service.Name, Value: value,
		ServiceID: &service.ID,
	})
	if err != nil {
		t.Fatalf("key create: %v", err)
	}
	return key
}

func testMeta() sso.AuditMeta {
	return sso.AuditMeta{UserAgent: "go-test", Remote: "127.0.0.1"}
}

func TestAuthenticateRoot(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)
	key := seedRootKey(t, f)

	identity, audit, err := auth.Authenticate(context.Background(), testMeta(), key.Value)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !identity.IsRoot() {
		t.Errorf("kind = %v, want root", identity.Kind)
	}
	if identity.Service != nil {
		t.Error("root identity must not carry a service")
	}
	if audit == nil {
		t.Fatal("expected an audit builder")
	}
}

func TestAuthenticateService(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)
	key := seedServiceKey(t, f, f.service)

	identity, _, err := auth.Authenticate(context.Background(), testMeta(), key.Value)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Kind != authsrv.IdentityService {
		t.Errorf("kind = %v, want service", identity.Kind)
	}
	if identity.Service == nil || identity.Service.ID != f.service.ID {
		t.Error("identity must resolve the owning service")
	}
}

func TestAuthenticateAbsent(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)

	identity, audit, err := auth.Authenticate(context.Background(), testMeta(), "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Kind != authsrv.IdentityAbsent {
		t.Errorf("kind = %v, want absent", identity.Kind)
	}
	if audit == nil {
		t.Fatal("expected an audit builder")
	}
}

func TestAuthenticateUnknown(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)

	if _, _, err := auth.Authenticate(context.Background(), testMeta(), "no-such-key"); !sso.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestAuthenticateRevokedServiceKey(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)
	ctx := context.Background()
	key := seedServiceKey(t, f, f.service)

	disabled, revoked := false, true
	if _, err := f.store.Key().Update(ctx, key.ID, sso.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked}); err != nil {
		t.Fatalf("key update: %v", err)
	}

	if _, _, err := auth.Authenticate(ctx, testMeta(), key.Value); !sso.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestAuthenticateDisabledService(t *testing.T) {
	f := newFixture(t)
	auth := authsrv.NewAuthenticator(f.store)
	ctx := context.Background()
	key := seedServiceKey(t, f, f.service)

	disabled := false
	if _, err := f.store.Service().Update(ctx, f.service.ID, sso.ServiceUpdate{IsEnabled: &disabled}); err != nil {
		t.Fatalf("service update: %v", err)
	}

	if _, _, err := auth.Authenticate(ctx, testMeta(), key.Value); !sso.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}
