// Package registry maps route segments to the administrable entities behind
// them. A Registry is built once at startup and passed to the navigation
// code that needs it.
package registry

import (
	"sort"
	"sync"

	"github.com/matthewbaird/backoffice/internal/controller"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// RegisteredEntity is one entry of the registry.
type RegisteredEntity struct {
	// Path is the route segment of the entity, e.g. "categories".
	Path   string
	Config meta.EntityConfig
	// Href is the list page; it defaults to /admin/{Path}.
	Href      string
	Icon      string
	MenuOrder int
	// Hidden entries are routable but kept out of Menu, e.g. children
	// reached through their parent.
	Hidden     bool
	Controller *controller.Controller
}

// Title is the configured title, or the path when there is none.
func (e *RegisteredEntity) Title() string {
	if e.Config.Title != "" {
		return e.Config.Title
	}
	return e.Path
}

// Registry is append-only and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]*RegisteredEntity
	ordered []*RegisteredEntity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byPath: make(map[string]*RegisteredEntity)}
}

// Register adds e and reports whether it was added. Registering a path that
// is already present is a no-op.
func (r *Registry) Register(e RegisteredEntity) bool {
	if e.Path == "" {
		return false
	}
	if e.Href == "" {
		e.Href = "/admin/" + e.Path
	}
	if e.Icon == "" {
		e.Icon = e.Config.Icon
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPath[e.Path]; ok {
		return false
	}
	entry := &e
	r.byPath[e.Path] = entry
	r.ordered = append(r.ordered, entry)
	return true
}

// Lookup returns the entry registered under path.
func (r *Registry) Lookup(path string) (*RegisteredEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPath[path]
	return e, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []*RegisteredEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RegisteredEntity, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Menu returns the visible entries ordered by MenuOrder, then registration.
func (r *Registry) Menu() []*RegisteredEntity {
	var out []*RegisteredEntity
	for _, e := range r.Entries() {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MenuOrder < out[j].MenuOrder })
	return out
}

// Service returns the unscoped CRUD service of the entity at path. It has
// the shape relation.Lookup expects.
func (r *Registry) Service(path string) (crud.Service, bool) {
	e, ok := r.Lookup(path)
	if !ok || e.Controller == nil {
		return nil, false
	}
	return e.Controller.Service(), true
}
