// Package memory is an in-process CRUD service for demos and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

// Store holds the items of one entity in insertion order.
type Store struct {
	entity    string
	parentKey string
	now       func() time.Time

	mu    sync.RWMutex
	order []string
	items map[string]crud.Record
}

// Option configures a Store.
type Option func(*Store)

// WithParentKey enables parent scoping on the given foreign-key field.
func WithParentKey(key string) Option {
	return func(s *Store) { s.parentKey = key }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store for entity.
func New(entity string, opts ...Option) *Store {
	s := &Store{
		entity: entity,
		now:    time.Now,
		items:  make(map[string]crud.Record),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed inserts records as-is, assigning ids to those without one.
func (s *Store) Seed(recs ...crud.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		r = accessor.Clone(r)
		id := crud.IDOf(r)
		if id == "" {
			id = uuid.NewString()
			r["id"] = id
		}
		if _, exists := s.items[id]; !exists {
			s.order = append(s.order, id)
		}
		s.items[id] = r
	}
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns one item by id.
func (s *Store) Get(_ context.Context, id string) (crud.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, apperr.NewNotFound(s.entity, id)
	}
	return accessor.Clone(r), nil
}

func (s *Store) FetchItems(_ context.Context, f crud.Filters) (*crud.ListResult, error) {
	s.mu.RLock()
	matched := make([]crud.Record, 0, len(s.order))
	for _, id := range s.order {
		r := s.items[id]
		if crud.Matches(r, f) {
			matched = append(matched, accessor.Clone(r))
		}
	}
	s.mu.RUnlock()
	return crud.Paginate(matched, f), nil
}

func (s *Store) CreateItem(_ context.Context, item crud.Record) (crud.Record, error) {
	r := accessor.Clone(item)
	if r == nil {
		r = crud.Record{}
	}
	id := crud.IDOf(r)
	if id == "" {
		id = uuid.NewString()
	}
	r["id"] = id
	ts := s.now().UTC().Format(time.RFC3339)
	r["createdAt"] = ts
	r["updatedAt"] = ts

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; exists {
		return nil, apperr.NewConflict(s.entity, "id", id)
	}
	s.items[id] = r
	s.order = append(s.order, id)
	return accessor.Clone(r), nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, patch crud.Record) (crud.Record, error) {
	return s.update(id, patch, "")
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.delete(id, "")
}

// SupportsParentScope reports whether the store was built with a parent key.
func (s *Store) SupportsParentScope() bool { return s.parentKey != "" }

// UpdateItemInScope updates id only if it belongs to parentID.
func (s *Store) UpdateItemInScope(_ context.Context, id string, patch crud.Record, parentID string) (crud.Record, error) {
	return s.update(id, patch, parentID)
}

// DeleteItemInScope deletes id only if it belongs to parentID.
func (s *Store) DeleteItemInScope(_ context.Context, id, parentID string) error {
	return s.delete(id, parentID)
}

func (s *Store) update(id string, patch crud.Record, parentID string) (crud.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok || !s.inScope(r, parentID) {
		return nil, apperr.NewNotFound(s.entity, id)
	}
	r = accessor.Clone(r)
	for k, v := range accessor.Flatten(patch) {
		if k == "id" || k == "createdAt" {
			continue
		}
		accessor.Set(r, k, v)
	}
	r["updatedAt"] = s.now().UTC().Format(time.RFC3339)
	s.items[id] = r
	return accessor.Clone(r), nil
}

func (s *Store) delete(id, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok || !s.inScope(r, parentID) {
		return apperr.NewNotFound(s.entity, id)
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) inScope(r crud.Record, parentID string) bool {
	if parentID == "" || s.parentKey == "" {
		return true
	}
	v, ok := accessor.Get(r, s.parentKey)
	return ok && crud.IDOf(crud.Record{"id": v}) == parentID
}
