package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/breadcrumb"
	"github.com/matthewbaird/backoffice/internal/controller"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/crud/memory"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/querycache"
	"github.com/matthewbaird/backoffice/internal/registry"
	"github.com/matthewbaird/backoffice/internal/relation"
	"github.com/matthewbaird/backoffice/internal/schema"
)

type fixture struct {
	srv      *httptest.Server
	reg      *registry.Registry
	hub      *Hub
	sessions *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := eventbus.New(16, nil)
	hub := NewHub(nil)
	bus.Subscribe("live", hub)
	bus.Start(context.Background())
	t.Cleanup(bus.Stop)

	cache := querycache.New()
	reg := registry.New()
	register := func(path string, cfg meta.EntityConfig, svc crud.Service) {
		reg.Register(registry.RegisteredEntity{
			Path:       path,
			Config:     cfg,
			Hidden:     cfg.Parent != nil,
			Controller: controller.New(cfg, svc, controller.Options{Entity: path, Cache: cache, Bus: bus}),
		})
	}

	categories := memory.New("categories")
	categories.Seed(crud.Record{"id": "c1", "name": "Drame"}, crud.Record{"id": "c2", "label": "Comédie"})
	register("categories", meta.EntityConfig{
		Title:   "Categories",
		Icon:    "🏷️",
		Actions: meta.AllActions(),
		Fields: schema.Introspect(schema.Define(
			schema.String("id"),
			schema.String("name"),
		)),
	}, categories)

	movies := memory.New("movies")
	movies.Seed(crud.Record{"id": "m1", "title": "Dune", "price": "1500", "releaseDate": "2024-03-01", "featured": "oui", "tags": "a,,b"})
	movieCfg := meta.EntityConfig{
		Title:       "Movies",
		Actions:     meta.AllActions(),
		BulkActions: []meta.BulkAction{{Name: "delete", Label: "Supprimer"}},
		Fields: schema.Introspect(schema.Define(
			schema.String("id"),
			schema.String("title"),
			schema.Optional(schema.Number("price")).With(schema.Annotation{Display: meta.Display{Suffix: " €"}}),
			schema.Optional(schema.Date("releaseDate")),
			schema.Optional(schema.Bool("featured")),
			schema.Optional(schema.List("tags")),
			schema.Optional(schema.String("categoryId").With(schema.Annotation{
				Relation: &meta.Relation{Entity: "categories", DisplayField: "label"},
			})),
			schema.Optional(schema.Number("seats")),
			schema.Optional(schema.Number("double").With(schema.Annotation{ComputeExpr: "seats * 2", Computed: true})),
		)),
	}
	register("movies", movieCfg, movies)

	sessions := memory.New("sessions", memory.WithParentKey("movieId"))
	sessions.Seed(crud.Record{"id": "s1", "movieId": "m1", "room": "A"}, crud.Record{"id": "s2", "movieId": "m2", "room": "B"})
	register("sessions", meta.EntityConfig{
		Title:   "Sessions",
		Actions: meta.AllActions(),
		Parent:  &meta.ParentDescriptor{Key: "movieId", RouteParam: "film", ParentEntity: "movies"},
		Fields: schema.Introspect(schema.Define(
			schema.String("id"),
			schema.String("movieId"),
			schema.String("room"),
		)),
	}, sessions)

	s := New(Config{Registry: reg, Hub: hub, Labels: breadcrumb.DefaultLabels})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, reg: reg, hub: hub, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func TestMenuAndBreadcrumbs(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/admin/menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	menu := decode[[]MenuEntry](t, body)
	require.Len(t, menu, 2)
	assert.Equal(t, MenuEntry{Path: "categories", Title: "Categories", Href: "/admin/categories", Icon: "🏷️"}, menu[0])

	_, body = f.do(t, http.MethodGet, "/api/admin/breadcrumbs?path=/admin/categories/42", nil)
	trail := decode[[]breadcrumb.Crumb](t, body)
	require.Len(t, trail, 3)
	assert.Equal(t, "Detail", trail[2].Label)
}

func TestConfig(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/admin/movies/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decode[ConfigResponse](t, body)
	assert.Equal(t, "Movies", cfg.Config.Title)
	assert.NotEmpty(t, cfg.Columns)
	assert.NotEmpty(t, cfg.Form)
	assert.Equal(t, relation.SingleSelect, cfg.Relations["categoryId"])

	resp, body = f.do(t, http.MethodGet, "/api/admin/nope/config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[apperr.Response](t, body).Code)
}

func TestRows_DetectedContentTypes(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/admin/movies/rows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[RowsResponse](t, body)
	require.Len(t, rows.Rows, 1)
	cells := rows.Rows[0].Cells

	assert.Equal(t, "1,500 €", cells["price"].Text)
	assert.EqualValues(t, "right", cells["price"].Align)
	assert.Equal(t, "01/03/2024", cells["releaseDate"].Text)
	assert.Equal(t, "✓", cells["featured"].Text)
	assert.Equal(t, []string{"a", "b"}, cells["tags"].Tags)
}

func TestItems_CreateThenListReflectsIt(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/admin/movies/items", map[string]any{
		"title": "Alien", "price": "12", "featured": "yes", "seats": 3, "double": 999, "unknown": "x",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[crud.Record](t, body)
	assert.Equal(t, 12.0, created["price"])
	assert.Equal(t, true, created["featured"])
	assert.NotContains(t, created, "unknown")
	assert.NotContains(t, created, "double")

	_, body = f.do(t, http.MethodGet, "/api/admin/movies/items", nil)
	list := decode[crud.ListResult](t, body)
	assert.Len(t, list.Data, 2)

	_, body = f.do(t, http.MethodGet, "/api/admin/movies/rows?title=Alien", nil)
	rows := decode[RowsResponse](t, body)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "6", rows.Rows[0].Cells["double"].Text)
}

func TestItems_Validation(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/api/admin/movies/items", map[string]any{"price": "12"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "title")

	resp, _ = f.do(t, http.MethodPost, "/api/admin/movies/items", map[string]any{"title": "x", "price": "douze"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPatch, "/api/admin/movies/items/m1", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItems_UpdateDelete(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPatch, "/api/admin/movies/items/m1", map[string]any{"title": "Dune II", "price": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[crud.Record](t, body)
	assert.Equal(t, "Dune II", updated["title"])
	assert.Nil(t, updated["price"])

	resp, _ = f.do(t, http.MethodDelete, "/api/admin/movies/items/m1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/api/admin/movies/items/m1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNestedItems(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/api/admin/sessions/parents/m1/items", nil)
	list := decode[crud.ListResult](t, body)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "s1", list.Data[0]["id"])

	resp, body := f.do(t, http.MethodPost, "/api/admin/sessions/parents/m1/items", map[string]any{"room": "C"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "m1", decode[crud.Record](t, body)["movieId"])

	resp, _ = f.do(t, http.MethodDelete, "/api/admin/sessions/parents/m1/items/s2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "another parent's child is out of scope")
	assert.Equal(t, 3, f.sessions.Len())

	resp, _ = f.do(t, http.MethodGet, "/api/admin/movies/parents/x/items", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItems_ParentFromRouteParamQuery(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/api/admin/sessions/items?film=m2", nil)
	list := decode[crud.ListResult](t, body)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "s2", list.Data[0]["id"])

	resp, body := f.do(t, http.MethodPost, "/api/admin/sessions/items?film=m2", map[string]any{"room": "D"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "m2", decode[crud.Record](t, body)["movieId"])

	resp, _ = f.do(t, http.MethodDelete, "/api/admin/sessions/items/s1?film=m2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "another parent's child is out of scope")

	_, body = f.do(t, http.MethodGet, "/api/admin/sessions/items", nil)
	assert.Len(t, decode[crud.ListResult](t, body).Data, 3, "without the parameter the list is unscoped")
}

func TestRelationOptions(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/admin/movies/options/categoryId", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	opts := decode[OptionsResponse](t, body)
	assert.Equal(t, relation.SingleSelect, opts.Presentation)
	assert.Equal(t, []meta.Option{{Value: "c1", Label: "Drame"}, {Value: "c2", Label: "Comédie"}}, opts.Options)

	resp, _ = f.do(t, http.MethodGet, "/api/admin/movies/options/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlainCollectionContract(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list, err := crud.DecodeList(body)
	require.NoError(t, err)
	assert.Len(t, list.Data, 2)

	resp, body = f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Horreur", "extra": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, decode[crud.Record](t, body)["extra"])
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/api/admin/movies/bulk/delete", BulkRequest{IDs: []string{"m1", "zz"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode[BulkResponse](t, body)
	assert.Equal(t, []string{"m1"}, out.Done)
	assert.Contains(t, out.Failed, "zz")

	resp, _ = f.do(t, http.MethodPost, "/api/admin/categories/bulk/delete", BulkRequest{IDs: []string{"c1"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLiveStreamReceivesInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/admin/live?entity=categories"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var hello LiveMessage
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, "hello", hello.Type)

	// A movies mutation is filtered out; the categories one comes through.
	f.do(t, http.MethodDelete, "/api/admin/movies/items/m1", nil)
	f.do(t, http.MethodDelete, "/api/admin/categories/items/c1", nil)

	var msg struct {
		Type string         `json:"type"`
		Data eventbus.Event `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "invalidated", msg.Type)
	assert.Equal(t, "categories", msg.Data.Entity)
	assert.Equal(t, eventbus.OpDeleted, msg.Data.Op)
	assert.Equal(t, "c1", msg.Data.ItemID)
	assert.Equal(t, 1, f.hub.Clients())
}

func TestRecovery(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestFiltersFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=2&limit=500&q=dune&sort=title&empty=", nil)
	f := filtersFromQuery(r)
	assert.Equal(t, crud.Filters{"page": 2, "limit": 100, "q": "dune", "sort": "title"}, f)

	r = httptest.NewRequest(http.MethodGet, "/?page=abc", nil)
	assert.Equal(t, crud.Filters{}, filtersFromQuery(r))
}
