// Package crud defines the capability an entity must supply to be managed
// by the back-office, plus helpers shared by the adapters.
package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matthewbaird/backoffice/internal/accessor"
)

// Record is one entity item.
type Record = accessor.Record

// Reserved filter keys. Every other key is an equality filter on the
// record value at that (dotted) path.
const (
	FilterPage   = "page"
	FilterLimit  = "limit"
	FilterSort   = "sort"
	FilterOrder  = "order"
	FilterSearch = "q"
)

// DefaultLimit is the page size used when a filter set has none.
const DefaultLimit = 20

// Filters are list parameters.
type Filters map[string]any

// Clone returns a shallow copy.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to v.
func (f Filters) With(key string, v any) Filters {
	out := f.Clone()
	out[key] = v
	return out
}

// Canonical is a stable encoding of f, equal for equal filter sets
// regardless of insertion order.
func (f Filters) Canonical() string {
	if len(f) == 0 {
		return "{}"
	}
	norm := make(map[string]string, len(f))
	for k, v := range f {
		norm[k] = fmt.Sprint(v)
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return fmt.Sprint(norm)
	}
	return string(b)
}

// Page returns the 1-based page number, 0 when unpaginated.
func (f Filters) Page() int {
	return f.intValue(FilterPage)
}

// Limit returns the page size, DefaultLimit when a page is set without one.
func (f Filters) Limit() int {
	if n := f.intValue(FilterLimit); n > 0 {
		return n
	}
	if f.Page() > 0 {
		return DefaultLimit
	}
	return 0
}

// Sort returns the sort key and whether ordering is descending.
func (f Filters) Sort() (string, bool) {
	key, _ := f[FilterSort].(string)
	order, _ := f[FilterOrder].(string)
	return key, strings.EqualFold(order, "desc")
}

// Search returns the free-text search term.
func (f Filters) Search() string {
	s, _ := f[FilterSearch].(string)
	return strings.TrimSpace(s)
}

// Equality returns the non-reserved filters, sorted by key.
func (f Filters) Equality() []KeyValue {
	var out []KeyValue
	for k, v := range f {
		switch k {
		case FilterPage, FilterLimit, FilterSort, FilterOrder, FilterSearch:
			continue
		}
		out = append(out, KeyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KeyValue is one equality filter.
type KeyValue struct {
	Key   string
	Value any
}

func (f Filters) intValue(key string) int {
	switch v := f[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// PageMeta describes the full result set of a paginated list.
type PageMeta struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page,omitempty"`
	Limit      int `json:"limit,omitempty"`
}

// ListResult is the answer of FetchItems.
type ListResult struct {
	Data []Record  `json:"data"`
	Meta *PageMeta `json:"meta,omitempty"`
}

// Service is the CRUD capability of one entity. Errors are returned
// unchanged to the caller; implementations own their own timeouts.
type Service interface {
	FetchItems(ctx context.Context, filters Filters) (*ListResult, error)
	CreateItem(ctx context.Context, item Record) (Record, error)
	UpdateItem(ctx context.Context, id string, patch Record) (Record, error)
	DeleteItem(ctx context.Context, id string) error
}

// ScopedService is implemented by services that can restrict updates and
// deletes to the children of one parent record.
type ScopedService interface {
	Service
	SupportsParentScope() bool
	UpdateItemInScope(ctx context.Context, id string, patch Record, parentID string) (Record, error)
	DeleteItemInScope(ctx context.Context, id, parentID string) error
}

// SupportsScope reports whether svc accepts a parent id on update and
// delete.
func SupportsScope(svc Service) (ScopedService, bool) {
	s, ok := svc.(ScopedService)
	if !ok || !s.SupportsParentScope() {
		return nil, false
	}
	return s, true
}

// Matches reports whether rec passes the equality and search filters.
func Matches(rec Record, f Filters) bool {
	for _, kv := range f.Equality() {
		v, ok := accessor.Get(rec, kv.Key)
		if !ok || !sameValue(v, kv.Value) {
			return false
		}
	}
	if q := f.Search(); q != "" {
		return containsText(rec, strings.ToLower(q))
	}
	return true
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func containsText(rec Record, q string) bool {
	found := false
	accessor.Walk(rec, func(_ accessor.Path, v any) {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
			found = true
		}
	})
	return found
}

// Paginate sorts and slices an already filtered list.
func Paginate(items []Record, f Filters) *ListResult {
	if key, desc := f.Sort(); key != "" {
		sort.SliceStable(items, func(i, j int) bool {
			a, _ := accessor.Get(items[i], key)
			b, _ := accessor.Get(items[j], key)
			if desc {
				return less(b, a)
			}
			return less(a, b)
		})
	}
	total := len(items)
	limit := f.Limit()
	if limit <= 0 {
		return &ListResult{Data: items, Meta: &PageMeta{Total: total, TotalPages: 1}}
	}
	page := f.Page()
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &ListResult{
		Data: items[start:end],
		Meta: &PageMeta{Total: total, TotalPages: TotalPages(total, limit), Page: page, Limit: limit},
	}
}

// TotalPages is ceil(total/limit), at least 1.
func TotalPages(total, limit int) int {
	if limit <= 0 || total == 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

func less(a, b any) bool {
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum && bNum {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// IDOf returns the string form of rec's id.
func IDOf(rec Record) string {
	if rec == nil {
		return ""
	}
	switch v := rec["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// DecodeList reads a list answer that is either a bare JSON array or a
// {"data": [...], "meta": {...}} envelope.
func DecodeList(body []byte) (*ListResult, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []Record
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decoding list: %w", err)
		}
		return &ListResult{Data: items}, nil
	}
	var env ListResult
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding list envelope: %w", err)
	}
	if env.Data == nil {
		env.Data = []Record{}
	}
	return &env, nil
}
