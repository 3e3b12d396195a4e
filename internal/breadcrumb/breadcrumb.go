// Package breadcrumb derives navigation trails from route paths.
//
// Derivation is shape-based, not a route-table lookup: the trailing segment
// is classified by how it looks. A slug made only of digits, or of eight or
// more hex characters, is taken for a record id even when it is not one.
package breadcrumb

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matthewbaird/backoffice/internal/registry"
)

// Crumb is one trail entry.
type Crumb struct {
	Label string `json:"label"`
	Href  string `json:"href"`
	Icon  string `json:"icon,omitempty"`
}

// Labels are the fixed trail labels.
type Labels struct {
	Dashboard     string
	DashboardHref string
	DashboardIcon string
	Detail        string
	Create        string
	Edit          string
}

// DefaultLabels are the labels used when a field of Labels is empty.
var DefaultLabels = Labels{
	Dashboard:     "Dashboard",
	DashboardHref: "/admin",
	DashboardIcon: "🏠",
	Detail:        "Detail",
	Create:        "Créer",
	Edit:          "Modifier",
}

func (l Labels) withDefaults() Labels {
	def := DefaultLabels
	if l.Dashboard == "" {
		l.Dashboard = def.Dashboard
	}
	if l.DashboardHref == "" {
		l.DashboardHref = def.DashboardHref
	}
	if l.DashboardIcon == "" {
		l.DashboardIcon = def.DashboardIcon
	}
	if l.Detail == "" {
		l.Detail = def.Detail
	}
	if l.Create == "" {
		l.Create = def.Create
	}
	if l.Edit == "" {
		l.Edit = def.Edit
	}
	return l
}

var (
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
	// Hex ids, optionally dashed like UUIDs.
	opaqueSegment = regexp.MustCompile(`^[0-9a-fA-F-]{8,}$`)
)

// LooksLikeID reports whether a path segment is classified as a record id.
func LooksLikeID(seg string) bool {
	if numericSegment.MatchString(seg) {
		return true
	}
	return opaqueSegment.MatchString(seg) && strings.Trim(seg, "-") != ""
}

// Derive builds the trail for path: the dashboard, the first registered
// entity whose path is one of the segments, and a label for the trailing
// segment when it is not the entity itself.
func Derive(path string, reg *registry.Registry, labels Labels) []Crumb {
	labels = labels.withDefaults()
	trail := []Crumb{{Label: labels.Dashboard, Href: labels.DashboardHref, Icon: labels.DashboardIcon}}

	segments := split(path)
	if len(segments) == 0 || reg == nil {
		return trail
	}
	entity, idx := match(segments, reg)
	if entity == nil {
		return trail
	}
	trail = append(trail, Crumb{Label: entity.Title(), Href: entity.Href, Icon: entity.Icon})

	last := segments[len(segments)-1]
	if idx == len(segments)-1 {
		return trail
	}
	return append(trail, Crumb{Label: classify(last, labels), Href: "/" + strings.Join(segments, "/")})
}

func split(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// match returns the first registered entity, in registration order, whose
// path appears among segments, with the index of that segment.
func match(segments []string, reg *registry.Registry) (*registry.RegisteredEntity, int) {
	for _, e := range reg.Entries() {
		for i, s := range segments {
			if s == e.Path {
				return e, i
			}
		}
	}
	return nil, -1
}

func classify(seg string, labels Labels) string {
	switch {
	case LooksLikeID(seg):
		return labels.Detail
	case seg == "create":
		return labels.Create
	case seg == "edit":
		return labels.Edit
	}
	first, size := utf8.DecodeRuneInString(seg)
	return string(unicode.ToUpper(first)) + seg[size:]
}
