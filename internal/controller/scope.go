package controller

import (
	"context"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// Scope restricts svc to the children of parentID. Lists are filtered on
// the parent key and created items receive it. Updates and deletes carry
// the parent id only when svc declares parent-scope support; otherwise
// they pass through unchanged.
//
// Scope returns svc itself when there is no parent descriptor or id.
func Scope(svc crud.Service, parent *meta.ParentDescriptor, parentID string) crud.Service {
	if parent == nil || parent.Key == "" || parentID == "" {
		return svc
	}
	return &scopedService{inner: svc, key: parent.Key, parentID: parentID}
}

type scopedService struct {
	inner    crud.Service
	key      string
	parentID string
}

func (s *scopedService) FetchItems(ctx context.Context, f crud.Filters) (*crud.ListResult, error) {
	return s.inner.FetchItems(ctx, f.With(s.key, s.parentID))
}

func (s *scopedService) CreateItem(ctx context.Context, item crud.Record) (crud.Record, error) {
	rec := accessor.Clone(item)
	if rec == nil {
		rec = crud.Record{}
	}
	accessor.Set(rec, s.key, s.parentID)
	return s.inner.CreateItem(ctx, rec)
}

func (s *scopedService) UpdateItem(ctx context.Context, id string, patch crud.Record) (crud.Record, error) {
	if scoped, ok := crud.SupportsScope(s.inner); ok {
		return scoped.UpdateItemInScope(ctx, id, patch, s.parentID)
	}
	return s.inner.UpdateItem(ctx, id, patch)
}

func (s *scopedService) DeleteItem(ctx context.Context, id string) error {
	if scoped, ok := crud.SupportsScope(s.inner); ok {
		return scoped.DeleteItemInScope(ctx, id, s.parentID)
	}
	return s.inner.DeleteItem(ctx, id)
}
