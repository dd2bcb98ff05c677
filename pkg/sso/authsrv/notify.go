package authsrv

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
)

// NotifyResetPassword asks the dispatcher to email a reset-password token.
type NotifyResetPassword struct {
	Service sso.Service
	User    sso.User
	Token   string
}

// NotifyUpdateEmail informs the user's previous address of an email change
// and carries the revoke token.
type NotifyUpdateEmail struct {
	Service  sso.Service
	User     sso.User
	OldEmail string
	Token    string
}

// NotifyUpdatePassword informs the user of a password change and carries
// the revoke token.
type NotifyUpdatePassword struct {
	Service sso.Service
	User    sso.User
	Token   string
}

// Notifier is the out-of-band email channel. Sends are fire-and-forget: a
// failure is logged by the implementation and never rolls back engine state.
type Notifier interface {
	SendResetPassword(ctx context.Context, msg NotifyResetPassword)
	SendUpdateEmail(ctx context.Context, msg NotifyUpdateEmail)
	SendUpdatePassword(ctx context.Context, msg NotifyUpdatePassword)
}

// NopNotifier drops every message. Used in tests and when no email provider
// is configured.
type NopNotifier struct{}

func (NopNotifier) SendResetPassword(context.Context, NotifyResetPassword)   {}
func (NopNotifier) SendUpdateEmail(context.Context, NotifyUpdateEmail)       {}
func (NopNotifier) SendUpdatePassword(context.Context, NotifyUpdatePassword) {}
