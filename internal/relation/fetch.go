// Package relation resolves the options of relation fields against another
// entity's list.
package relation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/crud/restclient"
)

// Fetcher lists every item of an entity.
type Fetcher interface {
	FetchAll(ctx context.Context, entity string) ([]crud.Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, entity string) ([]crud.Record, error)

func (f FetcherFunc) FetchAll(ctx context.Context, entity string) ([]crud.Record, error) {
	return f(ctx, entity)
}

// HTTPFetcher reads GET {BaseURL}/api/{entity}. The answer may be a bare
// array or a {"data": [...]} envelope.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	// Client carries the cookie jar, if any.
	Client *http.Client
}

func (h *HTTPFetcher) FetchAll(ctx context.Context, entity string) ([]crud.Record, error) {
	var opts []restclient.Option
	if h.Client != nil {
		opts = append(opts, restclient.WithHTTPClient(h.Client))
	}
	if h.Token != "" {
		opts = append(opts, restclient.WithToken(h.Token))
	}
	res, err := restclient.New(h.BaseURL, entity, opts...).FetchItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Lookup finds the CRUD service of an entity.
type Lookup func(entity string) (crud.Service, bool)

// ServiceFetcher reads related items from in-process services.
type ServiceFetcher struct {
	Lookup Lookup
	// Limit bounds the number of items read; zero means 500.
	Limit int
}

func (s *ServiceFetcher) FetchAll(ctx context.Context, entity string) ([]crud.Record, error) {
	svc, ok := s.Lookup(entity)
	if !ok {
		return nil, apperr.NewNotFound("entity", entity)
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 500
	}
	res, err := svc.FetchItems(ctx, crud.Filters{crud.FilterLimit: limit})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", entity, err)
	}
	return res.Data, nil
}
