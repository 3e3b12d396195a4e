package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

var _ crud.Service = (*Client)(nil)

func TestClient_FetchItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if r.URL.Query().Get("status") == "draft" {
			w.Write([]byte(`{"data":[{"id":"2"}],"meta":{"total":1,"totalPages":1}}`))
			return
		}
		w.Write([]byte(`[{"id":"1"},{"id":"2"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "movies", WithToken("secret"))
	res, err := c.FetchItems(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)

	res, err = c.FetchItems(context.Background(), crud.Filters{"status": "draft"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 1, res.Meta.Total)
}

func TestClient_Mutations(t *testing.T) {
	var lastMethod, lastPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastMethod, lastPath = r.Method, r.URL.Path
		switch r.Method {
		case http.MethodPost:
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			in["id"] = "new"
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(in)
		case http.MethodPatch:
			if r.URL.Path == "/api/movies/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"data":{"id":"1","title":"Renamed"}}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("db down"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL, "movies")

	created, err := c.CreateItem(ctx, crud.Record{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "new", created["id"])
	assert.Equal(t, http.MethodPost, lastMethod)

	updated, err := c.UpdateItem(ctx, "1", crud.Record{"title": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated["title"])
	assert.Equal(t, "/api/movies/1", lastPath)

	_, err = c.UpdateItem(ctx, "missing", crud.Record{})
	assert.True(t, apperr.IsNotFound(err))

	err = c.DeleteItem(ctx, "1")
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusInternalServerError, up.Status)
	assert.Equal(t, "db down", up.Body)
}
