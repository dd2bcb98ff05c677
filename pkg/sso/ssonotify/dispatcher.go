// Package ssonotify delivers the engine's out-of-band emails. Sends are
// enqueued fire-and-forget; a worker drains the queue, renders the message
// and hands it to the configured email provider.
package ssonotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gatekit/gatekit/pkg/config"
	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/notifx"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
)

type envelopeKind string

const (
	kindResetPassword  envelopeKind = "reset_password"
	kindUpdateEmail    envelopeKind = "update_email"
	kindUpdatePassword envelopeKind = "update_password"
)

// envelope is the queue wire format. Exactly one payload field is set.
type envelope struct {
	Kind           envelopeKind                  `json:"kind"`
	ResetPassword  *authsrv.NotifyResetPassword  `json:"reset_password,omitempty"`
	UpdateEmail    *authsrv.NotifyUpdateEmail    `json:"update_email,omitempty"`
	UpdatePassword *authsrv.NotifyUpdatePassword `json:"update_password,omitempty"`
}

// Dispatcher implements authsrv.Notifier over a queue and a notifx client.
type Dispatcher struct {
	client *notifx.Client
	queue  Queue
	cfg    config.NotifxConfig
}

func NewDispatcher(client *notifx.Client, queue Queue, cfg config.NotifxConfig) (*Dispatcher, error) {
	for name, tmpl := range templates {
		if err := client.RegisterTemplate(name, tmpl); err != nil {
			return nil, err
		}
	}
	return &Dispatcher{client: client, queue: queue, cfg: cfg}, nil
}

func (d *Dispatcher) SendResetPassword(ctx context.Context, msg authsrv.NotifyResetPassword) {
	d.enqueue(ctx, envelope{Kind: kindResetPassword, ResetPassword: &msg})
}

func (d *Dispatcher) SendUpdateEmail(ctx context.Context, msg authsrv.NotifyUpdateEmail) {
	d.enqueue(ctx, envelope{Kind: kindUpdateEmail, UpdateEmail: &msg})
}

func (d *Dispatcher) SendUpdatePassword(ctx context.Context, msg authsrv.NotifyUpdatePassword) {
	d.enqueue(ctx, envelope{Kind: kindUpdatePassword, UpdatePassword: &msg})
}

// enqueue never surfaces a failure to the caller: the triggering operation
// already committed, so a lost email is logged and left to the audit trail.
func (d *Dispatcher) enqueue(ctx context.Context, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		logx.WithError(ssonotifyErrors.NewWithCause(ErrEncode, err)).Error("ssonotify: encode failed")
		return
	}
	if err := d.queue.Enqueue(ctx, payload); err != nil {
		logx.WithError(err).WithField("kind", string(env.Kind)).Error("ssonotify: enqueue failed")
	}
}

// Run drains the queue until ctx is done. Intended to run in its own
// goroutine; delivery failures are logged and the worker keeps going.
func (d *Dispatcher) Run(ctx context.Context) {
	logx.Info("ssonotify: dispatcher started")
	for {
		payload, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logx.Info("ssonotify: dispatcher stopped")
				return
			}
			logx.WithError(err).Error("ssonotify: dequeue failed")
			continue
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logx.WithError(err).Error("ssonotify: malformed envelope dropped")
			continue
		}
		if err := d.deliver(ctx, env); err != nil {
			logx.WithError(err).WithField("kind", string(env.Kind)).Error("ssonotify: delivery failed")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env envelope) error {
	switch env.Kind {
	case kindResetPassword:
		if env.ResetPassword == nil {
			return ssonotifyErrors.New(ErrEncode).WithDetail("reason", "empty payload")
		}
		msg := env.ResetPassword
		return d.send(ctx, templateResetPassword, msg.User.Email,
			fmt.Sprintf("%s: reset your password", msg.Service.Name),
			templateData{
				ServiceName: msg.Service.Name,
				ServiceURL:  msg.Service.URL,
				UserName:    msg.User.Name,
				UserEmail:   msg.User.Email,
				Token:       msg.Token,
				ActionURL:   actionURL(msg.Service.ProviderLocalURL, "reset_password", msg.Token),
			})
	case kindUpdateEmail:
		if env.UpdateEmail == nil {
			return ssonotifyErrors.New(ErrEncode).WithDetail("reason", "empty payload")
		}
		msg := env.UpdateEmail
		// The revoke token goes to the old address; the new one is untrusted.
		return d.send(ctx, templateUpdateEmail, msg.OldEmail,
			fmt.Sprintf("%s: your email address was changed", msg.Service.Name),
			templateData{
				ServiceName: msg.Service.Name,
				ServiceURL:  msg.Service.URL,
				UserName:    msg.User.Name,
				UserEmail:   msg.User.Email,
				OldEmail:    msg.OldEmail,
				Token:       msg.Token,
				ActionURL:   actionURL(msg.Service.ProviderLocalURL, "update_email_revoke", msg.Token),
			})
	case kindUpdatePassword:
		if env.UpdatePassword == nil {
			return ssonotifyErrors.New(ErrEncode).WithDetail("reason", "empty payload")
		}
		msg := env.UpdatePassword
		return d.send(ctx, templateUpdatePassword, msg.User.Email,
			fmt.Sprintf("%s: your password was changed", msg.Service.Name),
			templateData{
				ServiceName: msg.Service.Name,
				ServiceURL:  msg.Service.URL,
				UserName:    msg.User.Name,
				UserEmail:   msg.User.Email,
				Token:       msg.Token,
				ActionURL:   actionURL(msg.Service.ProviderLocalURL, "update_password_revoke", msg.Token),
			})
	default:
		return ssonotifyErrors.New(ErrEncode).WithDetail("kind", string(env.Kind))
	}
}

func (d *Dispatcher) send(ctx context.Context, template, to, subject string, data templateData) error {
	return d.client.SendTemplatedEmail(ctx, template, data, notifx.EmailMessage{
		From:    d.cfg.FromAddress,
		To:      []string{to},
		Subject: subject,
	})
}

// actionURL builds the service's local-provider callback link. When the
// service exposes no local URL the email falls back to the raw token.
func actionURL(base *string, action, token string) string {
	if base == nil || *base == "" {
		return ""
	}
	u, err := url.Parse(*base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("type", action)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

var _ authsrv.Notifier = (*Dispatcher)(nil)
