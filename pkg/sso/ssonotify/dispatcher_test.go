package ssonotify_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gatekit/gatekit/pkg/config"
	"github.com/gatekit/gatekit/pkg/notifx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gatekit/gatekit/pkg/sso/ssonotify"
)

// captureSender records sent emails and signals each delivery.
type captureSender struct {
	mu   sync.Mutex
	sent []notifx.EmailMessage
	ch   chan struct{}
}

func newCaptureSender() *captureSender {
	return &captureSender{ch: make(chan struct{}, 16)}
}

func (s *captureSender) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func (s *captureSender) wait(t *testing.T) notifx.EmailMessage {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

func testDispatcher(t *testing.T) (*ssonotify.Dispatcher, *captureSender, context.CancelFunc) {
	t.Helper()
	sender := newCaptureSender()
	cfg := config.NotifxConfig{FromAddress: "noreply@gatekit.dev", QueueSize: 16}

	d, err := ssonotify.NewDispatcher(notifx.NewClient(sender), ssonotify.NewChannelQueue(cfg.QueueSize), cfg)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return d, sender, cancel
}

func testService() sso.Service {
	localURL := "https://service.example.com/auth"
	return sso.Service{Name: "Example", URL: "https://service.example.com", ProviderLocalURL: &localURL}
}

func testUser() sso.User {
	return sso.User{Name: "Guest", Email: "guest@example.com"}
}

func TestDispatcherResetPassword(t *testing.T) {
	d, sender, cancel := testDispatcher(t)
	defer cancel()

	d.SendResetPassword(context.Background(), authsrv.NotifyResetPassword{
		Service: testService(), User: testUser(), Token: "reset-token-1",
	})

	msg := sender.wait(t)
	if len(msg.To) != 1 || msg.To[0] != "guest@example.com" {
		t.Errorf("to = %v, want the user's address", msg.To)
	}
	if msg.From != "noreply@gatekit.dev" {
		t.Errorf("from = %q", msg.From)
	}
	if !strings.Contains(msg.HTMLBody, "reset-token-1") {
		t.Error("body must carry the reset token")
	}
	if !strings.Contains(msg.HTMLBody, "type=reset_password") {
		t.Error("body must link the service's local provider URL")
	}
}

func TestDispatcherUpdateEmailGoesToOldAddress(t *testing.T) {
	d, sender, cancel := testDispatcher(t)
	defer cancel()

	d.SendUpdateEmail(context.Background(), authsrv.NotifyUpdateEmail{
		Service: testService(), User: testUser(),
		OldEmail: "previous@example.com", Token: "revoke-token-1",
	})

	msg := sender.wait(t)
	if len(msg.To) != 1 || msg.To[0] != "previous@example.com" {
		t.Errorf("to = %v, want the previous address", msg.To)
	}
	if !strings.Contains(msg.HTMLBody, "revoke-token-1") {
		t.Error("body must carry the revoke token")
	}
}

func TestDispatcherUpdatePassword(t *testing.T) {
	d, sender, cancel := testDispatcher(t)
	defer cancel()

	d.SendUpdatePassword(context.Background(), authsrv.NotifyUpdatePassword{
		Service: testService(), User: testUser(), Token: "revoke-token-2",
	})

	msg := sender.wait(t)
	if len(msg.To) != 1 || msg.To[0] != "guest@example.com" {
		t.Errorf("to = %v, want the user's address", msg.To)
	}
	if !strings.Contains(msg.Subject, "Example") {
		t.Errorf("subject = %q, want the service name", msg.Subject)
	}
}

func TestChannelQueueFullDoesNotBlock(t *testing.T) {
	q := ssonotify.NewChannelQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, []byte("one")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Second enqueue must fail fast instead of blocking the caller.
	if err := q.Enqueue(ctx, []byte("two")); err == nil {
		t.Fatal("expected a queue-full error")
	}

	payload, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if string(payload) != "one" {
		t.Errorf("payload = %q, want one", payload)
	}
}

func TestChannelQueueDequeueHonorsContext(t *testing.T) {
	q := ssonotify.NewChannelQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected a context error")
	}
}
