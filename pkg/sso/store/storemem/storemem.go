// Package storemem is a map-backed implementation of the store contract.
// It exists for tests and local development; the semantics (keyset
// pagination, consuming CSRF reads, advisory locks) match the SQL backends.
package storemem

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/google/uuid"
)

type keyRecord struct {
	sso.Key
	Value string
}

// Store implements sso.Store in process memory.
type Store struct {
	mu       sync.Mutex
	services map[uuid.UUID]sso.Service
	users    map[uuid.UUID]sso.User
	keys     map[uuid.UUID]keyRecord
	csrfs    map[string]sso.Csrf
	audits   []sso.Audit

	lockMu sync.Mutex
	locks  map[int32]*sync.RWMutex
}

func New() *Store {
	return &Store{
		services: make(map[uuid.UUID]sso.Service),
		users:    make(map[uuid.UUID]sso.User),
		keys:     make(map[uuid.UUID]keyRecord),
		csrfs:    make(map[string]sso.Csrf),
		locks:    make(map[int32]*sync.RWMutex),
	}
}

func (s *Store) Service() sso.ServiceRepository { return &serviceRepo{s} }
func (s *Store) User() sso.UserRepository       { return &userRepo{s} }
func (s *Store) Key() sso.KeyRepository         { return &keyRepo{s} }
func (s *Store) Csrf() sso.CsrfRepository       { return &csrfRepo{s} }
func (s *Store) Audit() sso.AuditRepository     { return &auditRepo{s} }

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

func (s *Store) lock(key int32) *sync.RWMutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) Exclusive(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (s *Store) Shared(ctx context.Context, key int32, fn func(ctx context.Context) error) error {
	l := s.lock(key)
	l.RLock()
	defer l.RUnlock()
	return fn(ctx)
}

func idLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// pageIDs applies the keyset window to an ascending-sorted id slice. With
// only lt set the window is the ids closest below lt, still returned
// ascending.
func pageIDs(ids []uuid.UUID, gt, lt *uuid.UUID, limit int64) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	filtered := ids[:0:0]
	for _, id := range ids {
		if gt != nil && !idLess(*gt, id) {
			continue
		}
		if lt != nil && !idLess(id, *lt) {
			continue
		}
		filtered = append(filtered, id)
	}

	if lt != nil && gt == nil {
		if int64(len(filtered)) > limit {
			filtered = filtered[int64(len(filtered))-limit:]
		}
		return filtered
	}
	if int64(len(filtered)) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func now() time.Time { return time.Now().UTC() }
