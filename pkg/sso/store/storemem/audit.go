package storemem

import (
	"context"
	"sort"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

type auditRepo struct {
	s *Store
}

func (r *auditRepo) List(_ context.Context, query sso.AuditList) ([]sso.Audit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matched := make([]sso.Audit, 0, len(r.s.audits))
	for _, audit := range r.s.audits {
		if query.CreatedGE != nil && audit.CreatedAt.Before(*query.CreatedGE) {
			continue
		}
		if query.CreatedLE != nil && audit.CreatedAt.After(*query.CreatedLE) {
			continue
		}
		if query.ServiceID != nil && (audit.ServiceID == nil || *audit.ServiceID != *query.ServiceID) {
			continue
		}
		if len(query.Type) > 0 && !containsType(query.Type, audit.Type) {
			continue
		}
		matched = append(matched, audit)
	}

	// A created_le-only query pages backward: sort descending so the page
	// adjacent to le is taken, then reverse.
	descending := query.CreatedLE != nil && query.CreatedGE == nil
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			if descending {
				return idLess(matched[j].ID, matched[i].ID)
			}
			return idLess(matched[i].ID, matched[j].ID)
		}
		if descending {
			return matched[j].CreatedAt.Before(matched[i].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return store.AuditPage(matched, query.OffsetID, store.ClampLimit(query.Limit), descending), nil
}

func (r *auditRepo) Create(_ context.Context, create sso.AuditCreate) (*sso.Audit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	audit := sso.Audit{
		ID:        uuid.New(),
		CreatedAt: now(),
		UserAgent: create.Meta.UserAgent,
		Remote:    create.Meta.Remote,
		Forwarded: create.Meta.Forwarded,
		Type:      create.Type,
		Data:      create.Data,
		KeyID:     create.KeyID,
		ServiceID: create.ServiceID,
		UserID:    create.UserID,
		UserKeyID: create.UserKeyID,
	}
	r.s.audits = append(r.s.audits, audit)
	return &audit, nil
}

func (r *auditRepo) ReadByID(_ context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*sso.Audit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, audit := range r.s.audits {
		if audit.ID != id {
			continue
		}
		if serviceMask != nil && (audit.ServiceID == nil || *audit.ServiceID != *serviceMask) {
			return nil, store.ErrNotFound()
		}
		a := audit
		return &a, nil
	}
	return nil, store.ErrNotFound()
}

func (r *auditRepo) DeleteMany(_ context.Context, createdLE time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.audits[:0]
	var deleted int64
	for _, audit := range r.s.audits {
		if audit.CreatedAt.After(createdLE) {
			kept = append(kept, audit)
		} else {
			deleted++
		}
	}
	r.s.audits = kept
	return deleted, nil
}

func containsType(types []string, typ string) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}
