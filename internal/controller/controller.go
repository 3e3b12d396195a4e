// Package controller binds one entity's configuration and CRUD service into
// list and mutation operations with consistent cache invalidation.
package controller

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/logging"
	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/querycache"
)

// Options configures a Controller.
type Options struct {
	// Entity names the entity in events and errors.
	Entity string
	// QueryKey is the base cache key; it defaults to Entity. Every list
	// cached under it is invalidated by any mutation.
	QueryKey string
	// ParentID scopes the controller to one parent record when the entity
	// declares a parent.
	ParentID string
	// Cache is shared between controllers of the same process; nil
	// allocates a private cache.
	Cache  *querycache.Cache
	Bus    eventbus.Publisher
	Logger *zap.Logger
}

// Controller is safe for concurrent use.
type Controller struct {
	cfg  meta.EntityConfig
	base crud.Service
	svc  crud.Service
	opts Options
	log  *zap.Logger

	// flags are shared with the parent-scoped controllers derived by
	// WithParent.
	flags *inflight
}

type inflight struct {
	creating atomic.Int32
	updating atomic.Int32
	deleting atomic.Int32
	loading  atomic.Int32
}

// New creates a controller for cfg backed by svc.
func New(cfg meta.EntityConfig, svc crud.Service, opts Options) *Controller {
	return newController(cfg, svc, opts, &inflight{})
}

func newController(cfg meta.EntityConfig, svc crud.Service, opts Options, flags *inflight) *Controller {
	if opts.QueryKey == "" {
		opts.QueryKey = opts.Entity
	}
	if opts.Cache == nil {
		opts.Cache = querycache.New()
	}
	c := &Controller{
		cfg:   cfg,
		base:  svc,
		svc:   Scope(svc, cfg.Parent, opts.ParentID),
		opts:  opts,
		flags: flags,
	}
	c.log = logging.OrNop(opts.Logger).With(
		zap.String("entity", opts.Entity),
		zap.String("query_key", opts.QueryKey))
	if opts.ParentID != "" {
		c.log = c.log.With(zap.String("parent_id", opts.ParentID))
	}
	return c
}

// WithParent returns a controller for the same entity scoped to parentID,
// sharing this controller's cache, bus and in-flight flags.
func (c *Controller) WithParent(parentID string) *Controller {
	opts := c.opts
	opts.ParentID = parentID
	return newController(c.cfg, c.base, opts, c.flags)
}

// Config returns the entity configuration.
func (c *Controller) Config() meta.EntityConfig { return c.cfg }

// Entity returns the entity name.
func (c *Controller) Entity() string { return c.opts.Entity }

// QueryKey returns the base cache key.
func (c *Controller) QueryKey() string { return c.opts.QueryKey }

// ParentID returns the parent scope, empty when unscoped.
func (c *Controller) ParentID() string { return c.opts.ParentID }

// Service returns the effective, possibly parent-scoped, service.
func (c *Controller) Service() crud.Service { return c.svc }

// cacheFilters keys parent-scoped lists apart from unscoped ones.
func (c *Controller) cacheFilters(f crud.Filters) crud.Filters {
	if c.opts.ParentID == "" || c.cfg.Parent == nil {
		return f
	}
	return f.With(c.cfg.Parent.Key, c.opts.ParentID)
}

// List fetches items matching filters. Every call hits the service; the
// result is cached for Cached.
func (c *Controller) List(ctx context.Context, filters crud.Filters) (*crud.ListResult, error) {
	if !c.cfg.Actions.Read {
		return nil, apperr.NewForbidden("read", c.opts.Entity)
	}
	c.flags.loading.Add(1)
	defer c.flags.loading.Add(-1)

	res, err := c.opts.Cache.Fetch(ctx, c.opts.QueryKey, c.cacheFilters(filters), func(ctx context.Context) (*crud.ListResult, error) {
		return c.svc.FetchItems(ctx, filters)
	})
	if err != nil {
		c.log.Warn("list failed", zap.Error(err))
		return nil, err
	}
	return res, nil
}

// Cached returns the last successful list for filters, and whether it has
// been invalidated since.
func (c *Controller) Cached(filters crud.Filters) (res *crud.ListResult, invalidated bool, ok bool) {
	e, ok := c.opts.Cache.Get(c.opts.QueryKey, c.cacheFilters(filters))
	if !ok {
		return nil, false, false
	}
	return e.Result, e.Invalidated, true
}

// Create creates item. On success every list under the query key is
// invalidated before Create returns.
func (c *Controller) Create(ctx context.Context, item crud.Record) (crud.Record, error) {
	if !c.cfg.Actions.Create {
		return nil, apperr.NewForbidden("create", c.opts.Entity)
	}
	c.flags.creating.Add(1)
	defer c.flags.creating.Add(-1)

	rec, err := c.svc.CreateItem(ctx, item)
	if err != nil {
		c.log.Warn("create failed", zap.Error(err))
		return nil, err
	}
	c.invalidate(ctx, eventbus.OpCreated, crud.IDOf(rec))
	return rec, nil
}

// Update applies patch to id, with the same invalidation as Create.
func (c *Controller) Update(ctx context.Context, id string, patch crud.Record) (crud.Record, error) {
	if !c.cfg.Actions.Update {
		return nil, apperr.NewForbidden("update", c.opts.Entity)
	}
	c.flags.updating.Add(1)
	defer c.flags.updating.Add(-1)

	rec, err := c.svc.UpdateItem(ctx, id, patch)
	if err != nil {
		c.log.Warn("update failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	c.invalidate(ctx, eventbus.OpUpdated, id)
	return rec, nil
}

// Delete removes id, with the same invalidation as Create.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if !c.cfg.Actions.Delete {
		return apperr.NewForbidden("delete", c.opts.Entity)
	}
	c.flags.deleting.Add(1)
	defer c.flags.deleting.Add(-1)

	if err := c.svc.DeleteItem(ctx, id); err != nil {
		c.log.Warn("delete failed", zap.String("id", id), zap.Error(err))
		return err
	}
	c.invalidate(ctx, eventbus.OpDeleted, id)
	return nil
}

func (c *Controller) invalidate(ctx context.Context, op eventbus.Op, id string) {
	n := c.opts.Cache.Invalidate(c.opts.QueryKey)
	c.log.Debug("invalidated lists",
		zap.String("op", string(op)),
		zap.String("id", id),
		zap.Int("entries", n))
	if c.opts.Bus != nil {
		c.opts.Bus.Publish(ctx, eventbus.NewInvalidated(c.opts.QueryKey, c.opts.Entity, op, id, c.opts.ParentID))
	}
}

// Creating reports whether a create is in flight.
func (c *Controller) Creating() bool { return c.flags.creating.Load() > 0 }

// Updating reports whether an update is in flight.
func (c *Controller) Updating() bool { return c.flags.updating.Load() > 0 }

// Deleting reports whether a delete is in flight.
func (c *Controller) Deleting() bool { return c.flags.deleting.Load() > 0 }

// Loading reports whether a list fetch is in flight.
func (c *Controller) Loading() bool { return c.flags.loading.Load() > 0 }

// Pending is a snapshot of the in-flight flags.
type Pending struct {
	Creating bool `json:"creating"`
	Updating bool `json:"updating"`
	Deleting bool `json:"deleting"`
	Loading  bool `json:"loading"`
}

// Pending returns the current in-flight flags.
func (c *Controller) Pending() Pending {
	return Pending{
		Creating: c.Creating(),
		Updating: c.Updating(),
		Deleting: c.Deleting(),
		Loading:  c.Loading(),
	}
}
