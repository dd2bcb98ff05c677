package storemem

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
)

type csrfRepo struct {
	s *Store
}

func (r *csrfRepo) Create(_ context.Context, create sso.CsrfCreate) (*sso.Csrf, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	csrf := sso.Csrf{
		CreatedAt: now(),
		Key:       create.Key,
		Value:     create.Value,
		TTL:       create.TTL,
		ServiceID: create.ServiceID,
	}
	r.s.csrfs[csrf.Key] = csrf
	return &csrf, nil
}

// ReadOpt sweeps expired rows, then reads and deletes the requested key
// under the store lock so only one caller ever observes it.
func (r *csrfRepo) ReadOpt(_ context.Context, key string) (*sso.Csrf, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ts := now()
	for k, csrf := range r.s.csrfs {
		if !csrf.TTL.After(ts) {
			delete(r.s.csrfs, k)
		}
	}

	csrf, ok := r.s.csrfs[key]
	if !ok {
		return nil, nil
	}
	delete(r.s.csrfs, key)
	return &csrf, nil
}
