package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cache"
)

type eventSink struct {
	mu     sync.Mutex
	events []cache.InvalidationEvent
}

func (s *eventSink) apply(event cache.InvalidationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) snapshot() []cache.InvalidationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cache.InvalidationEvent(nil), s.events...)
}

func TestBroadcaster_DeliversToOtherInstances(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewBroadcaster(client, testLogger(t))
	receiver := NewBroadcaster(client, testLogger(t))
	require.NotEqual(t, sender.Origin(), receiver.Origin())

	received := &eventSink{}
	echoed := &eventSink{}
	go receiver.Listen(ctx, received.apply)
	go sender.Listen(ctx, echoed.apply)

	// Publish until the subscriptions are live.
	require.Eventually(t, func() bool {
		sender.NotifyInvalidation(ctx, cache.InvalidationEvent{Prefix: "products:list"})
		return len(received.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	event := received.snapshot()[0]
	assert.Equal(t, "products:list", event.Prefix)
	assert.Equal(t, sender.Origin(), event.Origin)
	assert.Empty(t, echoed.snapshot(), "an instance ignores its own events")
}

func TestBroadcaster_AppliesToCoordinator(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := cache.NewStore(10)
	peer := cache.NewCoordinator(local, client)
	sender := NewBroadcaster(client, testLogger(t))
	receiver := NewBroadcaster(client, testLogger(t))
	go receiver.Listen(ctx, peer.ApplyInvalidation)

	local.Set("categories:all", []byte(`[]`), time.Minute)

	require.Eventually(t, func() bool {
		sender.NotifyInvalidation(ctx, cache.InvalidationEvent{Key: "categories:all"})
		return !local.Has("categories:all")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBroadcaster_ListenStopsOnCancel(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewBroadcaster(client, testLogger(t)).Listen(ctx, func(cache.InvalidationEvent) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
