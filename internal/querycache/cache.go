// Package querycache caches list results by (query key, filters).
//
// Entries are always stale: every Fetch calls the loader, and the cache
// only keeps the last good answer for display while a refetch is pending
// or after it failed. Invalidate marks every entry under a base key stale
// at once, whatever filters they were fetched with.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matthewbaird/backoffice/internal/crud"
)

// Loader fetches a fresh list.
type Loader func(ctx context.Context) (*crud.ListResult, error)

// Entry is one cached list.
type Entry struct {
	Result    *crud.ListResult
	FetchedAt time.Time
	// Invalidated is set when a mutation happened after the fetch.
	Invalidated bool

	generation uint64
}

type bucket struct {
	generation uint64
	entries    map[string]*Entry
}

// Cache is safe for concurrent use.
type Cache struct {
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{now: time.Now, buckets: make(map[string]*bucket)}
}

// flightKey includes the bucket generation: a fetch started after an
// invalidation never joins one started before it.
func flightKey(base string, f crud.Filters, gen uint64) string {
	return base + "\x00" + f.Canonical() + "\x00" + strconv.FormatUint(gen, 10)
}

// Fetch calls load and stores its result under (base, f). Concurrent
// fetches of the same key and generation share one load. On error the
// previous entry is kept and the error returned.
func (c *Cache) Fetch(ctx context.Context, base string, f crud.Filters, load Loader) (*crud.ListResult, error) {
	c.mu.RLock()
	gen := c.bucketGeneration(base)
	c.mu.RUnlock()

	v, err, _ := c.group.Do(flightKey(base, f, gen), func() (any, error) {
		res, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(base, f, res, gen)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*crud.ListResult), nil
}

func (c *Cache) bucketGeneration(base string) uint64 {
	if b, ok := c.buckets[base]; ok {
		return b.generation
	}
	return 0
}

func (c *Cache) store(base string, f crud.Filters, res *crud.ListResult, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[base]
	if !ok {
		b = &bucket{entries: make(map[string]*Entry)}
		c.buckets[base] = b
	}
	key := f.Canonical()
	if prev, ok := b.entries[key]; ok && prev.generation > gen {
		// A later fetch already stored newer data.
		return
	}
	b.entries[key] = &Entry{
		Result:    res,
		FetchedAt: c.now(),
		// A fetch that started before an invalidation may hold
		// pre-mutation data.
		Invalidated: gen != b.generation,
		generation:  gen,
	}
}

// Get returns the cached entry for (base, f).
func (c *Cache) Get(base string, f crud.Filters) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[base]
	if !ok {
		return Entry{}, false
	}
	e, ok := b.entries[f.Canonical()]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Invalidate marks every entry under base as invalidated and returns how
// many there were.
func (c *Cache) Invalidate(base string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[base]
	if !ok {
		b = &bucket{entries: make(map[string]*Entry)}
		c.buckets[base] = b
	}
	b.generation++
	for _, e := range b.entries {
		e.Invalidated = true
	}
	return len(b.entries)
}

// Keys returns the number of cached filter combinations under base.
func (c *Cache) Keys(base string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.buckets[base]; ok {
		return len(b.entries)
	}
	return 0
}
