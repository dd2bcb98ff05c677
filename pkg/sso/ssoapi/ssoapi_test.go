package ssoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gatekit/gatekit/pkg/sso/ssoapi"
	"github.com/gatekit/gatekit/pkg/sso/store/storemem"
	"github.com/gofiber/fiber/v2"
)

const testPassword = "guest-password-1"

type apiFixture struct {
	app        *fiber.App
	store      *storemem.Store
	service    *sso.Service
	serviceKey string
	rootKey    string
	user       *sso.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	st := storemem.New()

	cfg := authsrv.Config{
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		RevokeTokenTTL:    24 * time.Hour,
		ResetTokenTTL:     time.Hour,
		PasswordMinLength: 8,
		PasswordMaxLength: 128,
	}
	engine := authsrv.NewEngine(st, authsrv.NopNotifier{}, cfg)
	manager := authsrv.NewManager(st, cfg)

	api := ssoapi.New(engine, manager, authsrv.NewAuthenticator(st))
	app := fiber.New(fiber.Config{ErrorHandler: ssoapi.ErrorHandler})
	api.RegisterRoutes(app)

	service, err := st.Service().Create(ctx, sso.ServiceCreate{
		IsEnabled: true, Name: "Example", URL: "https://service.example.com",
	})
	if err != nil {
		t.Fatalf("service create: %v", err)
	}

	serviceKeyValue, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	if _, err := st.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: "Example Key",
		Value: serviceKeyValue, ServiceID: &service.ID,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	rootKeyValue, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	if _, err := st.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: "Root", Value: rootKeyValue,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	hash, err := sso.PasswordHash(testPassword)
	if err != nil {
		t.Fatalf("password hash: %v", err)
	}
	user, err := st.User().Create(ctx, sso.UserCreate{
		IsEnabled: true, Name: "Guest", Email: "guest@example.com",
		Locale: "en", Timezone: "Etc/UTC",
		PasswordAllowReset: true, PasswordHash: &hash,
	})
	if err != nil {
		t.Fatalf("user create: %v", err)
	}
	tokenKeyValue, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	if _, err := st.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeToken, Name: "Guest Token",
		Value: tokenKeyValue, ServiceID: &service.ID, UserID: &user.ID,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	return &apiFixture{
		app:        app,
		store:      st,
		service:    service,
		serviceKey: serviceKeyValue,
		rootKey:    rootKeyValue,
		user:       user,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, authKey string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "go-test")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authKey != "" {
		req.Header.Set("Authorization", authKey)
	}

	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestPing(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}
}

func TestMissingUserAgent(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/service", nil)
	req.Header.Set("Authorization", f.serviceKey)
	req.Header.Del("User-Agent")
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMissingCredential(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/v1/service", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUnknownCredential(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/v1/service", "not-a-key", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/auth/provider/local/login", f.serviceKey, fiber.Map{
		"email": f.user.Email, "password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var envelope struct {
		Meta sso.UserPasswordMeta `json:"meta"`
		Data sso.UserToken        `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Meta.PasswordMinLength != 8 {
		t.Errorf("password_min_length = %d, want 8", envelope.Meta.PasswordMinLength)
	}
	if envelope.Data.AccessToken == "" || envelope.Data.RefreshToken == "" {
		t.Error("expected a token pair")
	}

	// Wrong password is a plain 400 with no hint which part failed.
	resp = f.request(t, http.MethodPost, "/v1/auth/provider/local/login", f.serviceKey, fiber.Map{
		"email": f.user.Email, "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong password status = %d, want 400", resp.StatusCode)
	}
}

func TestTokenRefreshEndpointSingleUse(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/auth/provider/local/login", f.serviceKey, fiber.Map{
		"email": f.user.Email, "password": testPassword,
	})
	var login struct {
		Data sso.UserToken `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = f.request(t, http.MethodPost, "/v1/auth/token/refresh", f.serviceKey, fiber.Map{
		"token": login.Data.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}

	resp = f.request(t, http.MethodPost, "/v1/auth/token/refresh", f.serviceKey, fiber.Map{
		"token": login.Data.RefreshToken,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("replayed refresh status = %d, want 400", resp.StatusCode)
	}
}

func TestKeyVerifyEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	value, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	if _, err := f.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: "Guest Key",
		Value: value, ServiceID: &f.service.ID, UserID: &f.user.ID,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	resp := f.request(t, http.MethodPost, "/v1/auth/key/verify", f.serviceKey, fiber.Map{"key": value})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", resp.StatusCode)
	}
	var userKey sso.UserKey
	decodeData(t, resp, &userKey)
	if userKey.User.ID != f.user.ID {
		t.Errorf("user id = %v, want %v", userKey.User.ID, f.user.ID)
	}

	resp = f.request(t, http.MethodPost, "/v1/auth/key/revoke", f.serviceKey, fiber.Map{"key": value})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d, want 200", resp.StatusCode)
	}
	resp = f.request(t, http.MethodPost, "/v1/auth/key/verify", f.serviceKey, fiber.Map{"key": value})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("verify after revoke status = %d, want 400", resp.StatusCode)
	}
}

func TestServiceCreateRequiresRoot(t *testing.T) {
	f := newAPIFixture(t)

	body := fiber.Map{"is_enabled": true, "name": "Second", "url": "https://second.example.com"}

	resp := f.request(t, http.MethodPost, "/v1/service", f.serviceKey, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("service key status = %d, want 403", resp.StatusCode)
	}

	resp = f.request(t, http.MethodPost, "/v1/service", f.rootKey, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("root key status = %d, want 201", resp.StatusCode)
	}
	var service sso.Service
	decodeData(t, resp, &service)
	if service.Name != "Second" {
		t.Errorf("name = %q, want Second", service.Name)
	}
}

func TestUserCreateEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/user", f.serviceKey, fiber.Map{
		"is_enabled": true, "name": "Second", "email": "second@example.com",
		"password": "second-password-9",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	// Short passwords are rejected before the store is touched.
	resp = f.request(t, http.MethodPost, "/v1/user", f.serviceKey, fiber.Map{
		"is_enabled": true, "name": "Third", "email": "third@example.com",
		"password": "abc",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short password status = %d, want 400", resp.StatusCode)
	}

	// Duplicate email is a conflict.
	resp = f.request(t, http.MethodPost, "/v1/user", f.serviceKey, fiber.Map{
		"is_enabled": true, "name": "Dup", "email": "second@example.com",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", resp.StatusCode)
	}
}

func TestAuditScopingEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	// One login under the fixture service leaves an audit record.
	resp := f.request(t, http.MethodPost, "/v1/auth/provider/local/login", f.serviceKey, fiber.Map{
		"email": f.user.Email, "password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	// A second service with its own key sees none of it.
	other, err := f.store.Service().Create(ctx, sso.ServiceCreate{
		IsEnabled: true, Name: "Other", URL: "https://other.example.com",
	})
	if err != nil {
		t.Fatalf("service create: %v", err)
	}
	otherKey, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	if _, err := f.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Name: "Other Key",
		Value: otherKey, ServiceID: &other.ID,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	resp = f.request(t, http.MethodGet, "/v1/audit", f.serviceKey, nil)
	var audits []sso.Audit
	decodeData(t, resp, &audits)
	if len(audits) == 0 {
		t.Fatal("owning service sees no audits")
	}

	resp = f.request(t, http.MethodGet, "/v1/audit", otherKey, nil)
	audits = nil
	decodeData(t, resp, &audits)
	if len(audits) != 0 {
		t.Fatalf("foreign service sees %d audits, want 0", len(audits))
	}
}

func TestForwardedHeaderRecorded(t *testing.T) {
	f := newAPIFixture(t)

	const forwarded = "for=203.0.113.60;proto=https"
	payload, err := json.Marshal(fiber.Map{"email": f.user.Email, "password": testPassword})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/provider/local/login", bytes.NewReader(payload))
	req.Header.Set("User-Agent", "go-test")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.serviceKey)
	req.Header.Set("Forwarded", forwarded)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = f.request(t, http.MethodGet, "/v1/audit", f.serviceKey, nil)
	var audits []sso.Audit
	decodeData(t, resp, &audits)
	if len(audits) == 0 {
		t.Fatal("no audit recorded")
	}
	found := false
	for _, audit := range audits {
		if audit.Forwarded != nil && *audit.Forwarded == forwarded {
			found = true
		}
	}
	if !found {
		t.Error("expected the Forwarded header on the login audit record")
	}
}

func TestKeyUpdateCannotUnrevoke(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	value, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	key, err := f.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, IsRevoked: true, Type: sso.KeyTypeKey, Name: "Dead",
		Value: value, ServiceID: &f.service.ID,
	})
	if err != nil {
		t.Fatalf("key create: %v", err)
	}

	resp := f.request(t, http.MethodPatch, "/v1/key/"+key.ID.String(), f.rootKey, fiber.Map{
		"is_revoked": false,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unrevoke status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthEndpointRejectsRootKey(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/auth/provider/local/login", f.rootKey, fiber.Map{
		"email": f.user.Email, "password": testPassword,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
