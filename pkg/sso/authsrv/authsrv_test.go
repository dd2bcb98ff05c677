package authsrv_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gatekit/gatekit/pkg/sso/store/storemem"
)

const testPassword = "guest-password-1"

type recordingNotifier struct {
	resets    []authsrv.NotifyResetPassword
	emails    []authsrv.NotifyUpdateEmail
	passwords []authsrv.NotifyUpdatePassword
}

func (n *recordingNotifier) SendResetPassword(_ context.Context, msg authsrv.NotifyResetPassword) {
	n.resets = append(n.resets, msg)
}

func (n *recordingNotifier) SendUpdateEmail(_ context.Context, msg authsrv.NotifyUpdateEmail) {
	n.emails = append(n.emails, msg)
}

func (n *recordingNotifier) SendUpdatePassword(_ context.Context, msg authsrv.NotifyUpdatePassword) {
	n.passwords = append(n.passwords, msg)
}

type fixture struct {
	store    *storemem.Store
	engine   *authsrv.Engine
	notifier *recordingNotifier
	service  *sso.Service
	user     *sso.User
	tokenKey *sso.KeyWithValue
}

func testConfig() authsrv.Config {
	return authsrv.Config{
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		RevokeTokenTTL:    24 * time.Hour,
		ResetTokenTTL:     time.Hour,
		PasswordMinLength: 8,
		PasswordMaxLength: 128,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := storemem.New()

	service, err := st.Service().Create(ctx, sso.ServiceCreate{
		IsEnabled: true, Name: "Example", URL: "https://service.example.com",
	})
	if err != nil {
		t.Fatalf("service create: %v", err)
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

	value, err := sso.KeyValueGenerate()
	if err != nil {
		t.Fatalf("key value: %v", err)
	}
	tokenKey, err := st.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeToken, Name: "Guest Token",
		Value: value, ServiceID: &service.ID, UserID: &user.ID,
	})
	if err != nil {
		t.Fatalf("key create: %v", err)
	}

	notifier := &recordingNotifier{}
	return &fixture{
		store:    st,
		engine:   authsrv.NewEngine(st, notifier, testConfig()),
		notifier: notifier,
		service:  service,
		user:     user,
		tokenKey: tokenKey,
	}
}

func (f *fixture) audit() *sso.AuditBuilder {
	return sso.NewAuditBuilder(sso.AuditMeta{UserAgent: "go-test", Remote: "127.0.0.1"})
}

func (f *fixture) auditTypes(t *testing.T) []string {
	t.Helper()
	audits, err := f.store.Audit().List(context.Background(), sso.AuditList{Limit: 100})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	types := make([]string, 0, len(audits))
	for _, a := range audits {
		types = append(types, a.Type)
	}
	return types
}

func containsType(types []string, typ sso.AuditType) bool {
	for _, v := range types {
		if v == string(typ) {
			return true
		}
	}
	return false
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token.User.ID != f.user.ID {
		t.Errorf("user id = %v, want %v", token.User.ID, f.user.ID)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		t.Error("expected non-empty token pair")
	}
	if token.AccessToken == token.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}

	access, err := f.engine.TokenVerify(ctx, f.service, f.audit(), token.AccessToken, nil)
	if err != nil {
		t.Fatalf("token verify: %v", err)
	}
	if access.User.ID != f.user.ID {
		t.Errorf("verified user id = %v, want %v", access.User.ID, f.user.ID)
	}
	if !containsType(f.auditTypes(t), sso.AuditTypeLogin) {
		t.Error("expected a Login audit record")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Login(context.Background(), f.service, f.audit(), f.user.Email, "not-the-password")
	if !sso.IsBadRequest(err) {
		t.Fatalf("err = %v, want bad request", err)
	}
	if !containsType(f.auditTypes(t), sso.AuditTypeLoginError) {
		t.Error("expected a LoginError audit record")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Login(context.Background(), f.service, f.audit(), "nobody@example.com", testPassword)
	if !sso.IsBadRequest(err) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestLoginDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled := false
	if _, err := f.store.User().Update(ctx, f.user.ID, sso.UserUpdate{IsEnabled: &disabled}); err != nil {
		t.Fatalf("user update: %v", err)
	}

	_, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if !sso.IsBadRequest(err) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestLoginPasswordRequireUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require := true
	if _, err := f.store.User().Update(ctx, f.user.ID, sso.UserUpdate{PasswordRequireUpdate: &require}); err != nil {
		t.Fatalf("user update: %v", err)
	}

	_, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if !sso.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestTokenRefreshSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fresh, err := f.engine.TokenRefresh(ctx, f.service, f.audit(), token.RefreshToken, nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.RefreshToken == token.RefreshToken {
		t.Error("refresh must mint a new refresh token")
	}

	// Same refresh token again: its nonce was consumed.
	if _, err := f.engine.TokenRefresh(ctx, f.service, f.audit(), token.RefreshToken, nil); !sso.IsBadRequest(err) {
		t.Fatalf("replayed refresh err = %v, want bad request", err)
	}

	// The fresh pair still works.
	if _, err := f.engine.TokenRefresh(ctx, f.service, f.audit(), fresh.RefreshToken, nil); err != nil {
		t.Fatalf("fresh refresh: %v", err)
	}
}

func TestTokenVerifyRejectsRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := f.engine.TokenVerify(ctx, f.service, f.audit(), token.RefreshToken, nil); !sso.IsBadRequest(err) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestTokenVerifyGarbage(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.TokenVerify(context.Background(), f.service, f.audit(), "not-a-jwt", nil); !sso.IsBadRequest(err) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestTokenRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.engine.TokenRevoke(ctx, f.service, f.audit(), token.RefreshToken, nil); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	key, err := f.store.Key().ReadByID(ctx, f.tokenKey.ID, nil)
	if err != nil {
		t.Fatalf("key read: %v", err)
	}
	if key.IsEnabled || !key.IsRevoked {
		t.Errorf("key enabled=%v revoked=%v, want disabled and revoked", key.IsEnabled, key.IsRevoked)
	}

	// Everything signed with the dead key is now rejected.
	if _, err := f.engine.TokenVerify(ctx, f.service, f.audit(), token.AccessToken, nil); !sso.IsBadRequest(err) {
		t.Fatalf("verify after revoke err = %v, want bad request", err)
	}
}

func TestKeyVerifyAndRevoke(t *testing.T) {
	f := newFixture(t)
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

	userKey, err := f.engine.KeyVerify(ctx, f.service, f.audit(), value, nil)
	if err != nil {
		t.Fatalf("key verify: %v", err)
	}
	if userKey.User.ID != f.user.ID {
		t.Errorf("user id = %v, want %v", userKey.User.ID, f.user.ID)
	}

	if err := f.engine.KeyRevoke(ctx, f.service, f.audit(), value, nil); err != nil {
		t.Fatalf("key revoke: %v", err)
	}
	if _, err := f.engine.KeyVerify(ctx, f.service, f.audit(), value, nil); !sso.IsBadRequest(err) {
		t.Fatalf("verify after revoke err = %v, want bad request", err)
	}
	if !containsType(f.auditTypes(t), sso.AuditTypeKeyRevoke) {
		t.Error("expected a KeyRevoke audit record")
	}
}

func TestKeyVerifyOtherService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.Service().Create(ctx, sso.ServiceCreate{
		IsEnabled: true, Name: "Other", URL: "https://other.example.com",
	})
	if err != nil {
		t.Fatalf("service create: %v", err)
	}

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

	// Another service cannot tell this key apart from a missing one.
	if _, err := f.engine.KeyVerify(ctx, other, f.audit(), value, nil); !sso.IsBadRequest(err) {
		t.Fatalf("cross-service verify err = %v, want bad request", err)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.ResetPassword(ctx, f.service, f.audit(), f.user.Email)
	if len(f.notifier.resets) != 1 {
		t.Fatalf("reset notifications = %d, want 1", len(f.notifier.resets))
	}
	token := f.notifier.resets[0].Token

	newPassword := "fresh-password-2"
	if err := f.engine.ResetPasswordConfirm(ctx, f.service, f.audit(), token, newPassword); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, testPassword); !sso.IsBadRequest(err) {
		t.Fatalf("login with old password err = %v, want bad request", err)
	}

	// The reset token is single-use.
	if err := f.engine.ResetPasswordConfirm(ctx, f.service, f.audit(), token, "another-password-3"); !sso.IsBadRequest(err) {
		t.Fatalf("replayed confirm err = %v, want bad request", err)
	}
}

func TestResetPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	f.engine.ResetPassword(context.Background(), f.service, f.audit(), "nobody@example.com")
	if len(f.notifier.resets) != 0 {
		t.Fatalf("reset notifications = %d, want 0", len(f.notifier.resets))
	}
	// The failure is invisible to the caller but lands in the audit trail.
	if !containsType(f.auditTypes(t), sso.AuditTypeResetPasswordError) {
		t.Error("expected a ResetPasswordError audit record")
	}
}

func TestResetPasswordDisallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	allow := false
	if _, err := f.store.User().Update(ctx, f.user.ID, sso.UserUpdate{PasswordAllowReset: &allow}); err != nil {
		t.Fatalf("user update: %v", err)
	}

	f.engine.ResetPassword(ctx, f.service, f.audit(), f.user.Email)
	if len(f.notifier.resets) != 0 {
		t.Fatalf("reset notifications = %d, want 0", len(f.notifier.resets))
	}
}

func TestUpdateEmailAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldEmail := f.user.Email
	if err := f.engine.UpdateEmail(ctx, f.service, f.audit(), f.user.ID, testPassword, "moved@example.com"); err != nil {
		t.Fatalf("update email: %v", err)
	}

	user, err := f.store.User().ReadByID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("user read: %v", err)
	}
	if user.Email != "moved@example.com" {
		t.Errorf("email = %q, want moved@example.com", user.Email)
	}
	if len(f.notifier.emails) != 1 {
		t.Fatalf("email notifications = %d, want 1", len(f.notifier.emails))
	}
	if f.notifier.emails[0].OldEmail != oldEmail {
		t.Errorf("old email = %q, want %q", f.notifier.emails[0].OldEmail, oldEmail)
	}

	// Revoke locks the account: the user plus every key they hold.
	count, err := f.engine.UpdateEmailRevoke(ctx, f.service, f.audit(), f.notifier.emails[0].Token)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if count != 2 {
		t.Errorf("revoked entities = %d, want 2 (key + user)", count)
	}

	user, err = f.store.User().ReadByID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("user read: %v", err)
	}
	if user.IsEnabled {
		t.Error("user should be disabled after revoke")
	}
	key, err := f.store.Key().ReadByID(ctx, f.tokenKey.ID, nil)
	if err != nil {
		t.Fatalf("key read: %v", err)
	}
	if key.IsEnabled || !key.IsRevoked {
		t.Errorf("key enabled=%v revoked=%v, want disabled and revoked", key.IsEnabled, key.IsRevoked)
	}

	// The revoke token is single-use.
	if _, err := f.engine.UpdateEmailRevoke(ctx, f.service, f.audit(), f.notifier.emails[0].Token); !sso.IsBadRequest(err) {
		t.Fatalf("replayed revoke err = %v, want bad request", err)
	}
}

func TestUpdatePasswordClearsRequireUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require := true
	if _, err := f.store.User().Update(ctx, f.user.ID, sso.UserUpdate{PasswordRequireUpdate: &require}); err != nil {
		t.Fatalf("user update: %v", err)
	}

	// Login is gated, but the update-password flow itself must proceed.
	newPassword := "fresh-password-2"
	if err := f.engine.UpdatePassword(ctx, f.service, f.audit(), f.user.ID, testPassword, newPassword); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if len(f.notifier.passwords) != 1 {
		t.Fatalf("password notifications = %d, want 1", len(f.notifier.passwords))
	}

	token, err := f.engine.Login(ctx, f.service, f.audit(), f.user.Email, newPassword)
	if err != nil {
		t.Fatalf("login after update: %v", err)
	}
	if token.User.PasswordRequireUpdate {
		t.Error("require-update flag should be cleared")
	}
}

func TestUpdatePasswordRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.UpdatePassword(ctx, f.service, f.audit(), f.user.ID, testPassword, "fresh-password-2"); err != nil {
		t.Fatalf("update password: %v", err)
	}

	count, err := f.engine.UpdatePasswordRevoke(ctx, f.service, f.audit(), f.notifier.passwords[0].Token)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if count != 2 {
		t.Errorf("revoked entities = %d, want 2", count)
	}
}

func TestTotpVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	secret, err := sso.TotpSecretGenerate()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	if _, err := f.store.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeTotp, Name: "Guest Totp",
		Value: secret, ServiceID: &f.service.ID, UserID: &f.user.ID,
	}); err != nil {
		t.Fatalf("key create: %v", err)
	}

	code, err := sso.TotpGenerate(secret)
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if err := f.engine.TotpVerify(ctx, f.service, f.audit(), f.user.ID, code); err != nil {
		t.Fatalf("totp verify: %v", err)
	}
	if err := f.engine.TotpVerify(ctx, f.service, f.audit(), f.user.ID, "000000"); !sso.IsBadRequest(err) {
		t.Fatalf("bad code err = %v, want bad request", err)
	}
}

func TestCsrfSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	csrf, err := f.engine.CsrfCreate(ctx, f.service, time.Hour)
	if err != nil {
		t.Fatalf("csrf create: %v", err)
	}
	if err := f.engine.CsrfVerify(ctx, f.service, csrf.Key); err != nil {
		t.Fatalf("csrf verify: %v", err)
	}
	if err := f.engine.CsrfVerify(ctx, f.service, csrf.Key); !sso.IsBadRequest(err) {
		t.Fatalf("replayed verify err = %v, want bad request", err)
	}
}

func TestCsrfServiceBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.Service().Create(ctx, sso.ServiceCreate{
		IsEnabled: true, Name: "Other", URL: "https://other.example.com",
	})
	if err != nil {
		t.Fatalf("service create: %v", err)
	}

	csrf, err := f.engine.CsrfCreate(ctx, f.service, time.Hour)
	if err != nil {
		t.Fatalf("csrf create: %v", err)
	}
	if err := f.engine.CsrfVerify(ctx, other, csrf.Key); !sso.IsBadRequest(err) {
		t.Fatalf("cross-service verify err = %v, want bad request", err)
	}
}

func TestCsrfTTLBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CsrfCreate(ctx, f.service, time.Second); !sso.IsBadRequest(err) {
		t.Fatalf("short ttl err = %v, want bad request", err)
	}
	if _, err := f.engine.CsrfCreate(ctx, f.service, 48*time.Hour); !sso.IsBadRequest(err) {
		t.Fatalf("long ttl err = %v, want bad request", err)
	}
	// Zero means default.
	if _, err := f.engine.CsrfCreate(ctx, f.service, 0); err != nil {
		t.Fatalf("default ttl: %v", err)
	}
}
