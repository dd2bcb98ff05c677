package storemem

import (
	"context"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
)

type serviceRepo struct {
	s *Store
}

func (r *serviceRepo) List(_ context.Context, query sso.ServiceList) ([]sso.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.s.services))
	for id := range r.s.services {
		if len(query.IDs) > 0 && !containsID(query.IDs, id) {
			continue
		}
		ids = append(ids, id)
	}

	out := make([]sso.Service, 0, len(ids))
	for _, id := range pageIDs(ids, query.GT, query.LT, store.ClampLimit(query.Limit)) {
		out = append(out, r.s.services[id])
	}
	return out, nil
}

func (r *serviceRepo) Create(_ context.Context, create sso.ServiceCreate) (*sso.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ts := now()
	service := sso.Service{
		ID:                         uuid.New(),
		CreatedAt:                  ts,
		UpdatedAt:                  ts,
		IsEnabled:                  create.IsEnabled,
		Name:                       create.Name,
		URL:                        create.URL,
		ProviderLocalURL:           create.ProviderLocalURL,
		ProviderGithubOauth2URL:    create.ProviderGithubOauth2URL,
		ProviderMicrosoftOauth2URL: create.ProviderMicrosoftOauth2URL,
	}
	r.s.services[service.ID] = service
	return &service, nil
}

func (r *serviceRepo) ReadByID(_ context.Context, id uuid.UUID) (*sso.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	service, ok := r.s.services[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	return &service, nil
}

func (r *serviceRepo) Update(_ context.Context, id uuid.UUID, update sso.ServiceUpdate) (*sso.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	service, ok := r.s.services[id]
	if !ok {
		return nil, store.ErrNotFound()
	}
	if update.IsEnabled != nil {
		service.IsEnabled = *update.IsEnabled
	}
	if update.Name != nil {
		service.Name = *update.Name
	}
	if update.URL != nil {
		service.URL = *update.URL
	}
	if update.ProviderLocalURL != nil {
		service.ProviderLocalURL = update.ProviderLocalURL
	}
	if update.ProviderGithubOauth2URL != nil {
		service.ProviderGithubOauth2URL = update.ProviderGithubOauth2URL
	}
	if update.ProviderMicrosoftOauth2URL != nil {
		service.ProviderMicrosoftOauth2URL = update.ProviderMicrosoftOauth2URL
	}
	service.UpdatedAt = now()
	r.s.services[id] = service
	return &service, nil
}

func (r *serviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.services[id]; !ok {
		return store.ErrNotFound()
	}
	delete(r.s.services, id)

	// Cascade: a service owns its keys and csrfs.
	for keyID, key := range r.s.keys {
		if key.ServiceID != nil && *key.ServiceID == id {
			delete(r.s.keys, keyID)
		}
	}
	for csrfKey, csrf := range r.s.csrfs {
		if csrf.ServiceID == id {
			delete(r.s.csrfs, csrfKey)
		}
	}
	return nil
}
