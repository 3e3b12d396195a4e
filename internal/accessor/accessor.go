// Package accessor reads and writes values on schema-less records by
// dot-separated path.
//
// Two variants are provided. The lenient functions (Get, Set, Has) never
// fail: a missing segment reads as absent and Set creates whatever
// intermediate maps it needs. The strict functions (GetStrict, SetStrict)
// report a *PathError instead so callers that expect a fixed shape can
// detect drift.
package accessor

import (
	"fmt"
	"sort"
	"strings"
)

// Record is a loosely typed entity record as it arrives from a CRUD
// capability or a decoded JSON body.
type Record = map[string]any

// Path is an ordered list of segments resolved left to right.
type Path []string

// ParsePath splits a dotted key ("address.city") into segments. Empty
// segments are dropped so "a..b" and "a.b" resolve identically.
func ParsePath(key string) Path {
	if key == "" {
		return nil
	}
	if !strings.Contains(key, ".") {
		return Path{key}
	}
	raw := strings.Split(key, ".")
	p := make(Path, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			p = append(p, s)
		}
	}
	return p
}

// String joins the segments back into dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// PathError reports where strict resolution stopped.
type PathError struct {
	Path    Path
	Segment int
	Reason  string
}

func (e *PathError) Error() string {
	if e.Segment < len(e.Path) {
		return fmt.Sprintf("path %q: segment %q: %s", e.Path.String(), e.Path[e.Segment], e.Reason)
	}
	return fmt.Sprintf("path %q: %s", e.Path.String(), e.Reason)
}

// Get returns the value at key. The boolean is false when any segment is
// missing or an intermediate value is not a map.
func Get(rec Record, key string) (any, bool) {
	return GetPath(rec, ParsePath(key))
}

// GetPath is Get for a pre-parsed path.
func GetPath(rec Record, p Path) (any, bool) {
	if rec == nil || len(p) == 0 {
		return nil, false
	}
	var cur any = rec
	for _, seg := range p {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Has reports whether key resolves to a present value (which may be nil).
func Has(rec Record, key string) bool {
	_, ok := Get(rec, key)
	return ok
}

// Set writes v at key, creating intermediate maps as needed. A non-map
// value sitting on an intermediate segment is replaced by a map. Set on a
// nil record or an empty key is a no-op.
func Set(rec Record, key string, v any) {
	SetPath(rec, ParsePath(key), v)
}

// SetPath is Set for a pre-parsed path.
func SetPath(rec Record, p Path, v any) {
	if rec == nil || len(p) == 0 {
		return
	}
	cur := rec
	for _, seg := range p[:len(p)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			next = Record{}
			cur[seg] = next
		}
		cur = next
	}
	cur[p[len(p)-1]] = v
}

// GetStrict resolves key and returns a *PathError when the path does not
// exist.
func GetStrict(rec Record, key string) (any, error) {
	p := ParsePath(key)
	if len(p) == 0 {
		return nil, &PathError{Path: p, Reason: "empty path"}
	}
	var cur any = rec
	for i, seg := range p {
		m, ok := asMap(cur)
		if !ok {
			return nil, &PathError{Path: p, Segment: i, Reason: "parent is not an object"}
		}
		v, ok := m[seg]
		if !ok {
			return nil, &PathError{Path: p, Segment: i, Reason: "missing"}
		}
		cur = v
	}
	return cur, nil
}

// SetStrict writes v at key only if every intermediate segment already
// exists as an object.
func SetStrict(rec Record, key string, v any) error {
	p := ParsePath(key)
	if rec == nil || len(p) == 0 {
		return &PathError{Path: p, Reason: "empty path"}
	}
	cur := rec
	for i, seg := range p[:len(p)-1] {
		raw, ok := cur[seg]
		if !ok {
			return &PathError{Path: p, Segment: i, Reason: "missing"}
		}
		next, ok := asMap(raw)
		if !ok {
			return &PathError{Path: p, Segment: i, Reason: "parent is not an object"}
		}
		cur = next
	}
	cur[p[len(p)-1]] = v
	return nil
}

// Walk visits every leaf of rec in sorted key order. Nested maps are
// descended into; any other value (including slices) is a leaf.
func Walk(rec Record, fn func(p Path, v any)) {
	walk(nil, rec, fn)
}

func walk(prefix Path, m Record, fn func(p Path, v any)) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := append(append(Path{}, prefix...), k)
		if child, ok := asMap(m[k]); ok && len(child) > 0 {
			walk(p, child, fn)
			continue
		}
		fn(p, m[k])
	}
}

// Flatten returns a single-level copy of rec keyed by dotted paths.
func Flatten(rec Record) map[string]any {
	out := make(map[string]any)
	Walk(rec, func(p Path, v any) {
		out[p.String()] = v
	})
	return out
}

// Clone copies rec deeply enough that Set on the copy never touches the
// original's nested maps.
func Clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		if m, ok := asMap(v); ok {
			out[k] = Clone(m)
			continue
		}
		out[k] = v
	}
	return out
}

func asMap(v any) (Record, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
