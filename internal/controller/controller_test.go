package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/crud/memory"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/querycache"
)

func categoriesConfig() meta.EntityConfig {
	return meta.EntityConfig{Title: "Categories", Actions: meta.AllActions()}
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, evt eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func TestController_CreateInvalidatesEveryFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.New("categories")
	bus := &recordingBus{}
	c := New(categoriesConfig(), store, Options{Entity: "categories", Bus: bus})

	_, err := c.List(ctx, nil)
	require.NoError(t, err)
	_, err = c.List(ctx, crud.Filters{"page": 1})
	require.NoError(t, err)

	created, err := c.Create(ctx, crud.Record{"name": "Drame"})
	require.NoError(t, err)

	for _, f := range []crud.Filters{nil, {"page": 1}} {
		_, invalidated, ok := c.Cached(f)
		require.True(t, ok)
		assert.True(t, invalidated, "%v", f)
	}

	res, err := c.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Drame", res.Data[0]["name"])
	_, invalidated, _ := c.Cached(nil)
	assert.False(t, invalidated)

	require.Len(t, bus.events, 1)
	assert.Equal(t, eventbus.OpCreated, bus.events[0].Op)
	assert.Equal(t, crud.IDOf(created), bus.events[0].ItemID)
	assert.Equal(t, "categories", bus.events[0].QueryKey)
}

func TestController_UpdateIsVisibleOnNextList(t *testing.T) {
	ctx := context.Background()
	store := memory.New("categories")
	store.Seed(crud.Record{"id": "c1", "name": "Drame"})
	c := New(categoriesConfig(), store, Options{Entity: "categories"})

	_, err := c.List(ctx, nil)
	require.NoError(t, err)
	_, err = c.Update(ctx, "c1", crud.Record{"name": "Drama"})
	require.NoError(t, err)

	res, err := c.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Drama", res.Data[0]["name"])

	require.NoError(t, c.Delete(ctx, "c1"))
	res, err = c.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}

type failingService struct {
	crud.Service
	err error
}

func (f *failingService) CreateItem(context.Context, crud.Record) (crud.Record, error) {
	return nil, f.err
}

func (f *failingService) FetchItems(ctx context.Context, filters crud.Filters) (*crud.ListResult, error) {
	if f.Service == nil {
		return nil, f.err
	}
	return f.Service.FetchItems(ctx, filters)
}

func TestController_ErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := apperr.NewValidation("name", "required")
	store := memory.New("categories")
	store.Seed(crud.Record{"id": "c1"})
	bus := &recordingBus{}
	c := New(categoriesConfig(), &failingService{Service: store, err: boom}, Options{Entity: "categories", Bus: bus})

	_, err := c.List(ctx, nil)
	require.NoError(t, err)

	_, err = c.Create(ctx, crud.Record{})
	assert.Same(t, boom, err)
	assert.Empty(t, bus.events)

	res, invalidated, ok := c.Cached(nil)
	require.True(t, ok)
	assert.False(t, invalidated)
	assert.Len(t, res.Data, 1)
}

func TestController_FailedRefetchKeepsPriorList(t *testing.T) {
	ctx := context.Background()
	cache := querycache.New()
	store := memory.New("categories")
	store.Seed(crud.Record{"id": "c1"})

	ok := New(categoriesConfig(), store, Options{Entity: "categories", Cache: cache})
	_, err := ok.List(ctx, nil)
	require.NoError(t, err)

	boom := errors.New("offline")
	broken := New(categoriesConfig(), &failingService{err: boom}, Options{Entity: "categories", Cache: cache})
	_, err = broken.List(ctx, nil)
	assert.ErrorIs(t, err, boom)

	res, _, found := broken.Cached(nil)
	require.True(t, found)
	assert.Len(t, res.Data, 1)
}

type blockingService struct {
	*memory.Store
	release chan struct{}
	started chan struct{}
}

func (b *blockingService) CreateItem(ctx context.Context, item crud.Record) (crud.Record, error) {
	close(b.started)
	<-b.release
	return b.Store.CreateItem(ctx, item)
}

func TestController_InFlightFlags(t *testing.T) {
	svc := &blockingService{Store: memory.New("categories"), release: make(chan struct{}), started: make(chan struct{})}
	c := New(categoriesConfig(), svc, Options{Entity: "categories"})
	assert.False(t, c.Creating())

	done := make(chan error)
	go func() {
		_, err := c.Create(context.Background(), crud.Record{"name": "x"})
		done <- err
	}()
	select {
	case <-svc.started:
	case <-time.After(time.Second):
		t.Fatal("create never started")
	}
	assert.True(t, c.Creating())
	assert.Equal(t, Pending{Creating: true}, c.Pending())

	close(svc.release)
	require.NoError(t, <-done)
	assert.False(t, c.Creating())
}

func TestController_DisabledActions(t *testing.T) {
	cfg := meta.EntityConfig{Actions: meta.Actions{Read: true}}
	c := New(cfg, memory.New("bookings"), Options{Entity: "bookings"})
	_, err := c.Create(context.Background(), crud.Record{})
	var forbidden *apperr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
	assert.Error(t, c.Delete(context.Background(), "x"))
	_, err = c.List(context.Background(), nil)
	assert.NoError(t, err)
}

// gatedListService reads its snapshot, then holds the first FetchItems
// until released.
type gatedListService struct {
	*memory.Store
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedListService) FetchItems(ctx context.Context, f crud.Filters) (*crud.ListResult, error) {
	res, err := g.Store.FetchItems(ctx, f)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return res, err
}

func TestController_ListAfterCreateSkipsEarlierFetch(t *testing.T) {
	ctx := context.Background()
	svc := &gatedListService{Store: memory.New("categories"), started: make(chan struct{}), release: make(chan struct{})}
	c := New(categoriesConfig(), svc, Options{Entity: "categories"})

	early := make(chan *crud.ListResult)
	go func() {
		res, err := c.List(ctx, nil)
		assert.NoError(t, err)
		early <- res
	}()
	select {
	case <-svc.started:
	case <-time.After(time.Second):
		t.Fatal("list never started")
	}

	_, err := c.Create(ctx, crud.Record{"name": "Drame"})
	require.NoError(t, err)

	after := make(chan *crud.ListResult)
	go func() {
		res, err := c.List(ctx, nil)
		assert.NoError(t, err)
		after <- res
	}()
	close(svc.release)

	assert.Empty(t, (<-early).Data)
	res := <-after
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Drame", res.Data[0]["name"])

	cached, invalidated, ok := c.Cached(nil)
	require.True(t, ok)
	assert.Len(t, cached.Data, 1)
	assert.False(t, invalidated)
}
