package storelite_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store/storelite"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func newTestStore(t *testing.T) *storelite.Store {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sqlite connect failed: %v", err)
	}
	s := storelite.New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAudits(t *testing.T, s *storelite.Store, n int) []sso.Audit {
	t.Helper()
	ctx := context.Background()
	audits := make([]sso.Audit, 0, n)
	for i := 0; i < n; i++ {
		audit, err := s.Audit().Create(ctx, sso.AuditCreate{
			Meta: sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"},
			Type: "Login",
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		audits = append(audits, *audit)
		time.Sleep(2 * time.Millisecond)
	}
	return audits
}

func TestAuditListCreatedLEReturnsNewestPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedAudits(t, s, 5)

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
	s := newTestStore(t)
	ctx := context.Background()
	seedAudits(t, s, 3)

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

func TestAuditListOffsetIDSkips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedAudits(t, s, 5)

	page, err := s.Audit().List(ctx, sso.AuditList{OffsetID: &created[1].ID, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 audits after offset, got %d", len(page))
	}
	if page[0].ID != created[2].ID {
		t.Errorf("expected first audit after offset to be %s, got %s", created[2].ID, page[0].ID)
	}
}
