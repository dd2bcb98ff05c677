package storemem

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) List(_ context.Context, query sso.UserList) ([]sso.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.s.users))
	for id, user := range r.s.users {
		if len(query.IDs) > 0 && !containsID(query.IDs, id) {
			continue
		}
		if query.EmailEq != nil && user.Email != *query.EmailEq {
			continue
		}
		ids = append(ids, id)
	}

	out := make([]sso.User, 0, len(ids))
	for _, id := range pageIDs(ids, query.GT, query.LT, store.ClampLimit(query.Limit)) {
		out = append(out, r.s.users[id])
	}
	return out, nil
}

func (r *userRepo) Create(_ context.Context, create sso.UserCreate) (*sso.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == create.Email {
			return nil, store.ErrConflict()
		}
	}

	ts := now()
	user := sso.User{
		ID:                    uuid.New(),
		CreatedAt:             ts,
		UpdatedAt:             ts,
		IsEnabled:             create.IsEnabled,
		Name:                  create.Name,
		Email:                 create.Email,
		Locale:                create.Locale,
		Timezone:              create.Timezone,
		PasswordAllowReset:    create.PasswordAllowReset,
		PasswordRequireUpdate: create.PasswordRequireUpdate,
		PasswordHash:          create.PasswordHash,
	}
	r.s.users[user.ID] = user
	return &user, nil
}

func (r *userRepo) ReadByID(_ context.Context, id uuid.UUID) (*sso.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	return &user, nil
}

func (r *userRepo) ReadByEmail(_ context.Context, email string) (*sso.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, store.ErrNotFound()
}

func (r *userRepo) Update(_ context.Context, id uuid.UUID, update sso.UserUpdate) (*sso.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	if update.IsEnabled != nil {
		user.IsEnabled = *update.IsEnabled
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Locale != nil {
		user.Locale = *update.Locale
	}
	if update.Timezone != nil {
		user.Timezone = *update.Timezone
	}
	if update.PasswordAllowReset != nil {
		user.PasswordAllowReset = *update.PasswordAllowReset
	}
	if update.PasswordRequireUpdate != nil {
		user.PasswordRequireUpdate = *update.PasswordRequireUpdate
	}
	user.UpdatedAt = now()
	r.s.users[id] = user
	return &user, nil
}

func (r *userRepo) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound()
	}
	for otherID, other := range r.s.users {
		if otherID != id && other.Email == email {
			return store.ErrConflict()
		}
	}
	user.Email = email
	user.UpdatedAt = now()
	r.s.users[id] = user
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound()
	}
	user.PasswordHash = &passwordHash
	user.UpdatedAt = now()
	r.s.users[id] = user
	return nil
}

func (r *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound()
	}
	delete(r.s.users, id)

	for keyID, key := range r.s.keys {
		if key.UserID != nil && *key.UserID == id {
			delete(r.s.keys, keyID)
		}
	}
	return nil
}
