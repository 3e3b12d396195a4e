package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

var _ crud.ScopedService = (*Store)(nil)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New("categories", WithClock(func() time.Time { return fixed }))

	created, err := s.CreateItem(ctx, crud.Record{"name": "Drame"})
	require.NoError(t, err)
	id := crud.IDOf(created)
	require.NotEmpty(t, id)
	assert.Equal(t, "2024-03-01T12:00:00Z", created["createdAt"])

	res, err := s.FetchItems(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 1, res.Meta.Total)

	updated, err := s.UpdateItem(ctx, id, crud.Record{"name": "Drama", "id": "other"})
	require.NoError(t, err)
	assert.Equal(t, "Drama", updated["name"])
	assert.Equal(t, id, updated["id"])

	require.NoError(t, s.DeleteItem(ctx, id))
	assert.Equal(t, 0, s.Len())

	err = s.DeleteItem(ctx, id)
	assert.True(t, apperr.IsNotFound(err))
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New("movies")
	created, err := s.CreateItem(ctx, crud.Record{"title": "Dune", "meta": map[string]any{"year": 2021}})
	require.NoError(t, err)
	created["meta"].(map[string]any)["year"] = 1984

	got, err := s.Get(ctx, crud.IDOf(created))
	require.NoError(t, err)
	assert.Equal(t, 2021, got["meta"].(map[string]any)["year"])
}

func TestStore_FiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New("movies")
	for i, title := range []string{"Alien", "Brazil", "Casablanca", "Dune", "Eraserhead"} {
		status := "draft"
		if i%2 == 0 {
			status = "published"
		}
		s.Seed(crud.Record{"title": title, "status": status, "rank": 5 - i})
	}

	res, err := s.FetchItems(ctx, crud.Filters{"status": "published"})
	require.NoError(t, err)
	assert.Len(t, res.Data, 3)

	res, err = s.FetchItems(ctx, crud.Filters{"page": 2, "limit": 2})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Casablanca", res.Data[0]["title"])
	assert.Equal(t, &crud.PageMeta{Total: 5, TotalPages: 3, Page: 2, Limit: 2}, res.Meta)

	res, err = s.FetchItems(ctx, crud.Filters{"sort": "rank"})
	require.NoError(t, err)
	assert.Equal(t, "Eraserhead", res.Data[0]["title"])

	res, err = s.FetchItems(ctx, crud.Filters{"q": "zil"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Brazil", res.Data[0]["title"])
}

func TestStore_ParentScope(t *testing.T) {
	ctx := context.Background()
	s := New("sessions", WithParentKey("movieId"))
	assert.True(t, s.SupportsParentScope())
	assert.False(t, New("x").SupportsParentScope())

	s.Seed(crud.Record{"id": "s1", "movieId": "m1"}, crud.Record{"id": "s2", "movieId": "m2"})

	_, err := s.UpdateItemInScope(ctx, "s2", crud.Record{"room": "A"}, "m1")
	assert.True(t, apperr.IsNotFound(err))

	updated, err := s.UpdateItemInScope(ctx, "s1", crud.Record{"room": "A"}, "m1")
	require.NoError(t, err)
	assert.Equal(t, "A", updated["room"])

	assert.Error(t, s.DeleteItemInScope(ctx, "s2", "m1"))
	require.NoError(t, s.DeleteItemInScope(ctx, "s2", "m2"))
	assert.Equal(t, 1, s.Len())
}
