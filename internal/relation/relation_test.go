package relation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/crud/memory"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/meta"
)

func TestDisplayName_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		item  crud.Record
		field string
		want  string
	}{
		{"display field", crud.Record{"label": "Action", "name": "n"}, "label", "Action"},
		{"nested display field", crud.Record{"info": map[string]any{"label": "Deep"}}, "info.label", "Deep"},
		{"name", crud.Record{"name": "Drame", "title": "t"}, "label", "Drame"},
		{"title", crud.Record{"title": "Dune", "id": "m1"}, "", "Dune"},
		{"id", crud.Record{"id": 42}, "", "42"},
		{"empty name skipped", crud.Record{"name": "", "id": "c1"}, "", "c1"},
		{"unknown", crud.Record{"other": 1}, "", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.item, tt.field))
		})
	}
}

func TestPresentationOf(t *testing.T) {
	rel := func(multiple bool, w meta.Widget) meta.FieldMetadata {
		return meta.FieldMetadata{
			Kind:     meta.KindRelation,
			Relation: &meta.Relation{Entity: "categories", Multiple: multiple},
			Display:  meta.Display{Widget: w},
		}
	}
	assert.Equal(t, SingleSelect, PresentationOf(rel(false, meta.WidgetDefault)))
	assert.Equal(t, MultiSelect, PresentationOf(rel(true, meta.WidgetDefault)))
	assert.Equal(t, TagToggle, PresentationOf(rel(true, meta.WidgetTag)))
	assert.Equal(t, RadioGroup, PresentationOf(rel(false, meta.WidgetRadio)))
	assert.Equal(t, CheckboxGroup, PresentationOf(rel(true, meta.WidgetRadio)))
}

func TestResolver_CachesForTTL(t *testing.T) {
	var calls atomic.Int32
	f := FetcherFunc(func(context.Context, string) ([]crud.Record, error) {
		calls.Add(1)
		return []crud.Record{{"id": "c1", "name": "Drame"}}, nil
	})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver(f, WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	field := meta.FieldMetadata{Key: "categoryId", Relation: &meta.Relation{Entity: "categories"}}

	opts, err := r.Options(context.Background(), field)
	require.NoError(t, err)
	assert.Equal(t, []meta.Option{{Value: "c1", Label: "Drame"}}, opts)

	_, err = r.Options(context.Background(), field)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = r.Options(context.Background(), field)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	require.NoError(t, r.HandleEvent(context.Background(), eventbus.Event{Entity: "categories"}))
	_, err = r.Options(context.Background(), field)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestResolver_ExpiredItemsSurviveFailedRefetch(t *testing.T) {
	fail := false
	f := FetcherFunc(func(context.Context, string) ([]crud.Record, error) {
		if fail {
			return nil, errors.New("offline")
		}
		return []crud.Record{{"id": "c1"}}, nil
	})
	now := time.Now()
	r := NewResolver(f, WithClock(func() time.Time { return now }))

	_, err := r.Items(context.Background(), "categories")
	require.NoError(t, err)

	fail = true
	now = now.Add(time.Hour)
	items, err := r.Items(context.Background(), "categories")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = r.Items(context.Background(), "movies")
	assert.Error(t, err)
}

func TestResolver_FieldWithoutRelation(t *testing.T) {
	r := NewResolver(FetcherFunc(func(context.Context, string) ([]crud.Record, error) { return nil, nil }))
	_, err := r.Options(context.Background(), meta.FieldMetadata{Key: "x", Kind: meta.KindRelation})
	assert.Error(t, err)
}

func TestHTTPFetcher_AcceptsBothShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/categories":
			_, _ = w.Write([]byte(`[{"id":"c1","name":"Drame"}]`))
		case "/api/movies":
			_, _ = w.Write([]byte(`{"data":[{"id":"m1","title":"Dune"}],"meta":{"total":1}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL, Token: "secret"}
	cats, err := f.FetchAll(context.Background(), "categories")
	require.NoError(t, err)
	assert.Equal(t, "Drame", cats[0]["name"])

	movies, err := f.FetchAll(context.Background(), "movies")
	require.NoError(t, err)
	assert.Equal(t, "Dune", DisplayName(movies[0], ""))

	_, err = f.FetchAll(context.Background(), "nope")
	assert.Equal(t, http.StatusNotFound, apperr.Status(err))
}

func TestServiceFetcher(t *testing.T) {
	store := memory.New("categories")
	store.Seed(crud.Record{"id": "c1"}, crud.Record{"id": "c2"})
	f := &ServiceFetcher{Lookup: func(entity string) (crud.Service, bool) {
		if entity == "categories" {
			return store, true
		}
		return nil, false
	}}

	items, err := f.FetchAll(context.Background(), "categories")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.FetchAll(context.Background(), "movies")
	assert.True(t, apperr.IsNotFound(err))
}

func TestResolver_InvalidationDuringFetchIsNotCached(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	r := NewResolver(FetcherFunc(func(context.Context, string) ([]crud.Record, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return []crud.Record{{"id": "c1", "name": "old"}}, nil
		}
		return []crud.Record{{"id": "c1", "name": "new"}}, nil
	}))
	ctx := context.Background()

	done := make(chan []crud.Record)
	go func() {
		items, err := r.Items(ctx, "categories")
		assert.NoError(t, err)
		done <- items
	}()
	<-started

	require.NoError(t, r.HandleEvent(ctx, eventbus.Event{Entity: "categories"}))
	close(release)
	assert.Equal(t, "old", (<-done)[0]["name"])

	items, err := r.Items(ctx, "categories")
	require.NoError(t, err)
	assert.Equal(t, "new", items[0]["name"])
	assert.Equal(t, int32(2), calls.Load())

	// The fresh result is cached.
	_, err = r.Items(ctx, "categories")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
