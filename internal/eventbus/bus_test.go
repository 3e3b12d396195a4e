package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_DispatchesInOrder(t *testing.T) {
	b := New(8, nil)
	var mu sync.Mutex
	var got []string
	b.Subscribe("collect", HandlerFunc(func(_ context.Context, evt Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.ItemID)
		return nil
	}))
	b.Start(context.Background())

	for _, id := range []string{"1", "2", "3"} {
		b.Publish(context.Background(), NewInvalidated("movies", "movies", OpCreated, id, ""))
	}
	b.Stop()

	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestBus_HandlerErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := New(1, zap.New(core))
	b.Subscribe("broken", HandlerFunc(func(context.Context, Event) error {
		return errors.New("boom")
	}))
	b.Start(context.Background())
	b.Publish(context.Background(), NewInvalidated("k", "e", OpDeleted, "1", ""))
	b.Stop()

	require.Equal(t, 1, logs.FilterMessage("handler error").Len())
}

func TestBus_PublishAfterStopIsDropped(t *testing.T) {
	b := New(1, nil)
	b.Start(context.Background())
	b.Stop()
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), NewInvalidated("k", "e", OpUpdated, "1", ""))
	})
}

func TestLogConsumer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewLogConsumer(zap.New(core))
	require.NoError(t, c.HandleEvent(context.Background(), NewInvalidated("sessions:m1", "sessions", OpCreated, "s1", "m1")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sessions:m1", entries[0].ContextMap()["query_key"])
}
