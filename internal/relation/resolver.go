package relation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/logging"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// DefaultTTL is how long fetched items are reused.
const DefaultTTL = 30 * time.Second

// Unknown is the display name of an item with none of the usual fields.
const Unknown = "Unknown"

// Presentation is how a relation picker offers its choices.
type Presentation string

const (
	SingleSelect  Presentation = "single-select"
	MultiSelect   Presentation = "multi-select"
	TagToggle     Presentation = "tag-toggle"
	RadioGroup    Presentation = "radio-group"
	CheckboxGroup Presentation = "checkbox-group"
)

// PresentationOf picks the picker for a relation field from its multiple
// flag and widget override.
func PresentationOf(f meta.FieldMetadata) Presentation {
	multiple := f.Relation != nil && f.Relation.Multiple
	switch f.Display.Widget {
	case meta.WidgetTag:
		return TagToggle
	case meta.WidgetRadio:
		if multiple {
			return CheckboxGroup
		}
		return RadioGroup
	}
	if multiple {
		return MultiSelect
	}
	return SingleSelect
}

// DisplayName renders one related item: displayField, then name, title,
// id, and finally Unknown.
func DisplayName(item crud.Record, displayField string) string {
	for _, key := range []string{displayField, "name", "title", "id"} {
		if key == "" {
			continue
		}
		v, ok := accessor.Get(item, key)
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return Unknown
}

type cached struct {
	items     []crud.Record
	fetchedAt time.Time
}

// Resolver fetches and caches related items per entity. It is safe for
// concurrent use.
type Resolver struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	group   singleflight.Group

	mu    sync.Mutex
	items map[string]cached
	// generations is bumped by Forget; a fetch stores its result only if
	// no Forget happened while it ran.
	generations map[string]uint64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.log = logging.OrNop(l) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver reading through f.
func NewResolver(f Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher: f,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zap.NewNop(),
		items:   make(map[string]cached),

		generations: make(map[string]uint64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Items returns the items of entity, fetching them when the cached copy is
// older than the TTL. A failed refetch falls back to the expired copy when
// there is one.
func (r *Resolver) Items(ctx context.Context, entity string) ([]crud.Record, error) {
	r.mu.Lock()
	c, ok := r.items[entity]
	gen := r.generations[entity]
	r.mu.Unlock()
	if ok && r.now().Sub(c.fetchedAt) < r.ttl {
		return c.items, nil
	}

	key := entity + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := r.group.Do(key, func() (any, error) {
		items, err := r.fetcher.FetchAll(ctx, entity)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.generations[entity] == gen {
			r.items[entity] = cached{items: items, fetchedAt: r.now()}
		}
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		if ok {
			r.log.Warn("relation refetch failed, serving expired items",
				zap.String("entity", entity), zap.Error(err))
			return c.items, nil
		}
		return nil, err
	}
	return v.([]crud.Record), nil
}

// Options returns the choices of a relation field, valued by item id and
// labelled by DisplayName.
func (r *Resolver) Options(ctx context.Context, f meta.FieldMetadata) ([]meta.Option, error) {
	if f.Relation == nil || f.Relation.Entity == "" {
		return nil, fmt.Errorf("field %q has no relation descriptor", f.Key)
	}
	items, err := r.Items(ctx, f.Relation.Entity)
	if err != nil {
		return nil, err
	}
	out := make([]meta.Option, 0, len(items))
	for _, it := range items {
		out = append(out, meta.Option{
			Value: crud.IDOf(it),
			Label: DisplayName(it, f.Relation.DisplayField),
		})
	}
	return out, nil
}

// Forget drops the cached items of entity, so the next read refetches.
// A fetch already in flight is neither joined nor stored.
func (r *Resolver) Forget(entity string) {
	r.mu.Lock()
	delete(r.items, entity)
	r.generations[entity]++
	r.mu.Unlock()
}

// HandleEvent forgets the items of the mutated entity. It lets a Resolver
// subscribe to the invalidation bus.
func (r *Resolver) HandleEvent(_ context.Context, evt eventbus.Event) error {
	r.Forget(evt.Entity)
	return nil
}
