package storemem_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/gatekit/gatekit/pkg/sso/store/storemem"
	"github.com/google/uuid"
)

func seedUsers(t *testing.T, s *storemem.Store, n int) []sso.User {
	t.Helper()
	ctx := context.Background()
	users := make([]sso.User, 0, n)
	for i := 0; i < n; i++ {
		user, err := s.User().Create(ctx, sso.UserCreate{
			IsEnabled: true,
			Name:      "user",
			Email:     uuid.NewString() + "@example.com",
		})
		if err != nil {
			t.Fatalf("user create failed: %v", err)
		}
		users = append(users, *user)
	}
	return users
}

func TestUserListPaginationCoversAll(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()
	seedUsers(t, s, 25)

	seen := make(map[uuid.UUID]bool)
	var cursor *uuid.UUID
	var last uuid.UUID
	for {
		page, err := s.User().List(ctx, sso.UserList{GT: cursor, Limit: 7})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, user := range page {
			if seen[user.ID] {
				t.Fatalf("duplicate id %s across pages", user.ID)
			}
			seen[user.ID] = true
			last = user.ID
		}
		id := last
		cursor = &id
	}

	if len(seen) != 25 {
		t.Errorf("expected 25 users across pages, got %d", len(seen))
	}
}

func TestUserListLTReturnsAscending(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()
	seedUsers(t, s, 10)

	all, err := s.User().List(ctx, sso.UserList{Limit: 100})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// Window below the last id: the closest ids, still ascending.
	lt := all[len(all)-1].ID
	page, err := s.User().List(ctx, sso.UserList{LT: &lt, Limit: 3})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 results, got %d", len(page))
	}
	want := all[len(all)-4 : len(all)-1]
	for i := range page {
		if page[i].ID != want[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, want[i].ID, page[i].ID)
		}
	}
}

func TestUserEmailConflict(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	if _, err := s.User().Create(ctx, sso.UserCreate{Email: "dup@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err := s.User().Create(ctx, sso.UserCreate{Email: "dup@example.com"})
	if !store.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestKeyValueConflict(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	if _, err := s.Key().Create(ctx, sso.KeyCreate{Type: sso.KeyTypeKey, Value: "same-value"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err := s.Key().Create(ctx, sso.KeyCreate{Type: sso.KeyTypeKey, Value: "same-value"})
	if !store.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestKeyUpdateManyByUser(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()
	serviceID := uuid.New()
	userID := uuid.New()

	for _, typ := range []sso.KeyType{sso.KeyTypeKey, sso.KeyTypeToken, sso.KeyTypeTotp} {
		value, _ := sso.KeyValueGenerate()
		if _, err := s.Key().Create(ctx, sso.KeyCreate{
			IsEnabled: true, Type: typ, Value: value,
			ServiceID: &serviceID, UserID: &userID,
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	disabled, revoked := false, true
	count, err := s.Key().UpdateManyByUser(ctx, userID, sso.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked})
	if err != nil {
		t.Fatalf("update many failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 keys updated, got %d", count)
	}

	keys, err := s.Key().List(ctx, sso.KeyList{UserID: &userID, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, key := range keys {
		if key.IsEnabled || !key.IsRevoked {
			t.Errorf("key %s not disabled+revoked", key.ID)
		}
	}
}

func TestCsrfReadOptConsumesOnce(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	csrf, err := s.Csrf().Create(ctx, sso.CsrfCreate{
		Key: "one-shot", Value: "one-shot",
		TTL: time.Now().Add(time.Hour), ServiceID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := s.Csrf().ReadOpt(ctx, csrf.Key)
	if err != nil || got == nil {
		t.Fatalf("expected first read to return the record, got %v %v", got, err)
	}
	again, err := s.Csrf().ReadOpt(ctx, csrf.Key)
	if err != nil {
		t.Fatalf("second read errored: %v", err)
	}
	if again != nil {
		t.Error("expected second read to return absent")
	}
}

func TestCsrfReadOptExpired(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	if _, err := s.Csrf().Create(ctx, sso.CsrfCreate{
		Key: "expired", Value: "expired",
		TTL: time.Now().Add(-time.Minute), ServiceID: uuid.New(),
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := s.Csrf().ReadOpt(ctx, "expired")
	if err != nil {
		t.Fatalf("read errored: %v", err)
	}
	if got != nil {
		t.Error("expected expired record to be swept")
	}
}

func TestCsrfReadOptConcurrent(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	if _, err := s.Csrf().Create(ctx, sso.CsrfCreate{
		Key: "contended", Value: "contended",
		TTL: time.Now().Add(time.Hour), ServiceID: uuid.New(),
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var hits int
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Csrf().ReadOpt(ctx, "contended")
			if err == nil && got != nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Errorf("expected exactly one caller to consume the csrf, got %d", hits)
	}
}

func TestAuditListOffsetID(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	var created []sso.Audit
	for i := 0; i < 5; i++ {
		audit, err := s.Audit().Create(ctx, sso.AuditCreate{
			Meta: sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"},
			Type: "Login",
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		created = append(created, *audit)
	}

	page, err := s.Audit().List(ctx, sso.AuditList{OffsetID: &created[1].ID, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 audits after offset, got %d", len(page))
	}
	for _, audit := range page {
		if audit.ID == created[0].ID || audit.ID == created[1].ID {
			t.Errorf("audit %s should have been skipped by offset", audit.ID)
		}
	}
}

func TestAuditListCreatedLEReturnsNewestPage(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	var created []sso.Audit
	for i := 0; i < 5; i++ {
		audit, err := s.Audit().Create(ctx, sso.AuditCreate{
			Meta: sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"},
			Type: "Login",
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		created = append(created, *audit)
		time.Sleep(2 * time.Millisecond)
	}

	// Paging backward from the newest timestamp must return the rows
	// adjacent to the cutoff, still ascending.
	le := created[4].CreatedAt
	page, err := s.Audit().List(ctx, sso.AuditList{CreatedLE: &le, Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 audits, got %d", len(page))
	}
	if page[0].ID != created[3].ID || page[1].ID != created[4].ID {
		t.Errorf("expected newest page [%s %s], got [%s %s]",
			created[3].ID, created[4].ID, page[0].ID, page[1].ID)
	}
}

func TestAuditListOffsetIDUnmatched(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Audit().Create(ctx, sso.AuditCreate{
			Meta: sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"},
			Type: "Login",
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	// An offset id that matches no row leaves the page unskipped.
	offset := uuid.New()
	page, err := s.Audit().List(ctx, sso.AuditList{OffsetID: &offset, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("expected 3 audits with an unmatched offset, got %d", len(page))
	}
}

func TestAuditDeleteManyRetention(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.Audit().Create(ctx, sso.AuditCreate{
			Meta: sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"},
			Type: "Login",
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	deleted, err := s.Audit().DeleteMany(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	if deleted != 4 {
		t.Errorf("expected 4 audits deleted, got %d", deleted)
	}

	left, err := s.Audit().List(ctx, sso.AuditList{Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("expected no audits left, got %d", len(left))
	}
}

func TestServiceDeleteCascades(t *testing.T) {
	s := storemem.New()
	ctx := context.Background()

	service, err := s.Service().Create(ctx, sso.ServiceCreate{IsEnabled: true, Name: "svc", URL: "https://svc.example.com"})
	if err != nil {
		t.Fatalf("service create failed: %v", err)
	}
	value, _ := sso.KeyValueGenerate()
	if _, err := s.Key().Create(ctx, sso.KeyCreate{
		IsEnabled: true, Type: sso.KeyTypeKey, Value: value, ServiceID: &service.ID,
	}); err != nil {
		t.Fatalf("key create failed: %v", err)
	}
	if _, err := s.Csrf().Create(ctx, sso.CsrfCreate{
		Key: "cascade", Value: "cascade", TTL: time.Now().Add(time.Hour), ServiceID: service.ID,
	}); err != nil {
		t.Fatalf("csrf create failed: %v", err)
	}

	if err := s.Service().Delete(ctx, service.ID); err != nil {
		t.Fatalf("service delete failed: %v", err)
	}

	keys, err := s.Key().List(ctx, sso.KeyList{ServiceID: &service.ID, Limit: 10})
	if err != nil {
		t.Fatalf("key list failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected service keys removed, got %d", len(keys))
	}
	got, err := s.Csrf().ReadOpt(ctx, "cascade")
	if err != nil || got != nil {
		t.Errorf("expected service csrfs removed, got %v %v", got, err)
	}
}
