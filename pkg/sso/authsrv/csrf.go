package authsrv

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
)

// CSRF nonces issued through the API are bounded to keep the table small.
const (
	CsrfTTLMin     = time.Minute
	CsrfTTLMax     = 24 * time.Hour
	CsrfTTLDefault = time.Hour
)

// CsrfCreate issues a single-use nonce bound to the calling service.
func (e *Engine) CsrfCreate(ctx context.Context, service *sso.Service, ttl time.Duration) (*sso.Csrf, error) {
	if ttl <= 0 {
		ttl = CsrfTTLDefault
	}
	if ttl < CsrfTTLMin || ttl > CsrfTTLMax {
		return nil, sso.ErrBadRequest().WithDetail("reason", "csrf ttl out of range")
	}
	return e.csrfCreate(ctx, service, ttl)
}

// CsrfVerify consumes a nonce. It succeeds at most once per key, and only
// for the service that created it.
func (e *Engine) CsrfVerify(ctx context.Context, service *sso.Service, key string) error {
	return e.csrfConsume(ctx, service.ID, key)
}
