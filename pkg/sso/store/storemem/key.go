package storemem

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

type keyRepo struct {
	s *Store
}

func (r *keyRepo) List(_ context.Context, query sso.KeyList) ([]sso.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.s.keys))
	for id, key := range r.s.keys {
		if len(query.IDs) > 0 && !containsID(query.IDs, id) {
			continue
		}
		if query.IsEnabled != nil && key.IsEnabled != *query.IsEnabled {
			continue
		}
		if query.IsRevoked != nil && key.IsRevoked != *query.IsRevoked {
			continue
		}
		if query.Type != nil && key.Type != *query.Type {
			continue
		}
		if query.ServiceID != nil && (key.ServiceID == nil || *key.ServiceID != *query.ServiceID) {
			continue
		}
		if query.UserID != nil && (key.UserID == nil || *key.UserID != *query.UserID) {
			continue
		}
		ids = append(ids, id)
	}

	out := make([]sso.Key, 0, len(ids))
	for _, id := range pageIDs(ids, query.GT, query.LT, store.ClampLimit(query.Limit)) {
		out = append(out, r.s.keys[id].Key)
	}
	return out, nil
}

func (r *keyRepo) Create(_ context.Context, create sso.KeyCreate) (*sso.KeyWithValue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.keys {
		if existing.Value == create.Value {
			return nil, store.ErrConflict()
		}
	}

	ts := now()
	rec := keyRecord{
		Key: sso.Key{
			ID:        uuid.New(),
			CreatedAt: ts,
			UpdatedAt: ts,
			IsEnabled: create.IsEnabled,
			IsRevoked: create.IsRevoked,
			Type:      create.Type,
			Name:      create.Name,
			ServiceID: create.ServiceID,
			UserID:    create.UserID,
		},
		Value: create.Value,
	}
	r.s.keys[rec.ID] = rec
	return &sso.KeyWithValue{Key: rec.Key, Value: rec.Value}, nil
}

func (r *keyRepo) ReadByID(_ context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*sso.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.keys[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	if serviceMask != nil && (rec.ServiceID == nil || *rec.ServiceID != *serviceMask) {
		return nil, store.ErrNotFound()
	}
	key := rec.Key
	return &key, nil
}

func (r *keyRepo) ReadByRootValue(_ context.Context, value string) (*sso.KeyWithValue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.keys {
		if rec.Value == value && rec.ServiceID == nil && rec.UserID == nil {
			return &sso.KeyWithValue{Key: rec.Key, Value: rec.Value}, nil
		}
	}
	return nil, store.ErrNotFound()
}

func (r *keyRepo) ReadByServiceValue(_ context.Context, value string) (*sso.KeyWithValue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.keys {
		if rec.Value == value && rec.ServiceID != nil && rec.UserID == nil {
			return &sso.KeyWithValue{Key: rec.Key, Value: rec.Value}, nil
		}
	}
	return nil, store.ErrNotFound()
}

func (r *keyRepo) ReadByUserValue(_ context.Context, serviceID uuid.UUID, typ sso.KeyType, value string) (*sso.KeyWithValue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.keys {
		if rec.Value != value || rec.Type != typ {
			continue
		}
		if rec.ServiceID == nil || *rec.ServiceID != serviceID || rec.UserID == nil {
			continue
		}
		return &sso.KeyWithValue{Key: rec.Key, Value: rec.Value}, nil
	}
	return nil, store.ErrNotFound()
}

func (r *keyRepo) ReadByUser(_ context.Context, serviceID, userID uuid.UUID, typ sso.KeyType) (*sso.KeyWithValue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var found *keyRecord
	for _, rec := range r.s.keys {
		if rec.Type != typ {
			continue
		}
		if rec.ServiceID == nil || *rec.ServiceID != serviceID {
			continue
		}
		if rec.UserID == nil || *rec.UserID != userID {
			continue
		}
		rec := rec
		// The enabled, non-revoked key wins over stale rows.
		if found == nil || (rec.IsEnabled && !rec.IsRevoked) {
			found = &rec
		}
	}
	if found == nil {
		return nil, store.ErrNotFound()
	}
	return &sso.KeyWithValue{Key: found.Key, Value: found.Value}, nil
}

func (r *keyRepo) Update(_ context.Context, id uuid.UUID, update sso.KeyUpdate) (*sso.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.keys[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	applyKeyUpdate(&rec, update)
	r.s.keys[id] = rec
	key := rec.Key
	return &key, nil
}

func (r *keyRepo) UpdateManyByUser(_ context.Context, userID uuid.UUID, update sso.KeyUpdate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for id, rec := range r.s.keys {
		if rec.UserID == nil || *rec.UserID != userID {
			continue
		}
		applyKeyUpdate(&rec, update)
		r.s.keys[id] = rec
		count++
	}
	return count, nil
}

func (r *keyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.keys[id]; !ok {
		return store.ErrNotFound()
	}
	delete(r.s.keys, id)
	return nil
}

func applyKeyUpdate(rec *keyRecord, update sso.KeyUpdate) {
	if update.IsEnabled != nil {
		rec.IsEnabled = *update.IsEnabled
	}
	if update.IsRevoked != nil && *update.IsRevoked {
		rec.IsRevoked = true
	}
	if update.Name != nil {
		rec.Name = *update.Name
	}
	rec.UpdatedAt = now()
}
