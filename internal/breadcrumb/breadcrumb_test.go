package breadcrumb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/registry"
)

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.RegisteredEntity{Path: "categories", Config: meta.EntityConfig{Title: "Categories", Icon: "🏷️"}})
	reg.Register(registry.RegisteredEntity{Path: "movies", Config: meta.EntityConfig{Title: "Movies"}})
	return reg
}

func labelsOf(trail []Crumb) []string {
	out := make([]string, len(trail))
	for i, c := range trail {
		out[i] = c.Label
	}
	return out
}

func TestDerive(t *testing.T) {
	reg := testRegistry()
	tests := []struct {
		path string
		want []string
	}{
		{"/admin/categories/42", []string{"Dashboard", "Categories", "Detail"}},
		{"/admin/categories/create", []string{"Dashboard", "Categories", "Créer"}},
		{"/admin/categories/edit", []string{"Dashboard", "Categories", "Modifier"}},
		{"/admin/movies/3f9a2c1d-77b0-4e2a-9c1f-0a1b2c3d4e5f", []string{"Dashboard", "Movies", "Detail"}},
		{"/admin/movies/deadbeef", []string{"Dashboard", "Movies", "Detail"}},
		{"/admin/movies/archive", []string{"Dashboard", "Movies", "Archive"}},
		{"/admin/movies", []string{"Dashboard", "Movies"}},
		{"/admin/movies/", []string{"Dashboard", "Movies"}},
		{"/admin/unknown/1", []string{"Dashboard"}},
		{"/", []string{"Dashboard"}},
		{"", []string{"Dashboard"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, labelsOf(Derive(tt.path, reg, Labels{})))
		})
	}
}

func TestDerive_HrefsAndIcons(t *testing.T) {
	trail := Derive("/admin/categories/42?tab=info", testRegistry(), Labels{})
	assert.Equal(t, []Crumb{
		{Label: "Dashboard", Href: "/admin", Icon: "🏠"},
		{Label: "Categories", Href: "/admin/categories", Icon: "🏷️"},
		{Label: "Detail", Href: "/admin/categories/42"},
	}, trail)
}

func TestDerive_FirstRegisteredEntityWins(t *testing.T) {
	trail := Derive("/admin/movies/m1/categories", testRegistry(), Labels{})
	// categories was registered first, and it is the trailing segment.
	assert.Equal(t, []string{"Dashboard", "Categories"}, labelsOf(trail))
}

func TestDerive_CustomLabels(t *testing.T) {
	trail := Derive("/admin/categories/create", testRegistry(), Labels{Dashboard: "Home", Create: "Create"})
	assert.Equal(t, []string{"Home", "Categories", "Create"}, labelsOf(trail))
}

func TestLooksLikeID(t *testing.T) {
	assert.True(t, LooksLikeID("42"))
	assert.True(t, LooksLikeID("a1b2c3d4"))
	assert.False(t, LooksLikeID("abc"))
	assert.False(t, LooksLikeID("create"))
	assert.False(t, LooksLikeID("--------"))
	// Shape-based: an all-hex slug is read as an id.
	assert.True(t, LooksLikeID("facade00"))
}

func TestDerive_NilRegistry(t *testing.T) {
	assert.Equal(t, []string{"Dashboard"}, labelsOf(Derive("/admin/x", nil, Labels{})))
}
