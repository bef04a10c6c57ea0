package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/common/logging"
)

// InvalidationChannel carries cache.InvalidationEvent messages between instances.
const InvalidationChannel = "cache:invalidate"

var _ cache.Notifier = (*Broadcaster)(nil)

// Broadcaster publishes local invalidations so other instances can drop the
// same keys from their in-process tier, and applies theirs to ours.
type Broadcaster struct {
	client     *Client
	origin     string
	channel    string
	retryDelay time.Duration
	logger     logging.Logger
}

func NewBroadcaster(client *Client, logger logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	origin := uuid.NewString()
	return &Broadcaster{
		client:     client,
		origin:     origin,
		channel:    InvalidationChannel,
		retryDelay: 5 * time.Second,
		logger:     logger.WithFields(logging.Field{Key: "component", Value: "cache_broadcast"}, logging.Field{Key: "origin", Value: origin}),
	}
}

// Origin identifies this instance in published events.
func (b *Broadcaster) Origin() string { return b.origin }

func (b *Broadcaster) NotifyInvalidation(ctx context.Context, event cache.InvalidationEvent) {
	event.Origin = b.origin
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("Failed to encode invalidation event", logging.Err(err))
		return
	}
	b.client.Publish(ctx, b.channel, data)
}

// Listen applies events published by other instances until ctx is done.
// A lost subscription is re-established after a delay.
func (b *Broadcaster) Listen(ctx context.Context, apply func(cache.InvalidationEvent)) {
	for {
		if err := b.listenOnce(ctx, apply); err != nil {
			b.logger.Warn("Invalidation subscription lost", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.retryDelay):
		}
	}
}

func (b *Broadcaster) listenOnce(ctx context.Context, apply func(cache.InvalidationEvent)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("Listening for cache invalidations", logging.Field{Key: "channel", Value: b.channel})

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event cache.InvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("Ignoring malformed invalidation event", logging.Err(err))
				continue
			}
			if event.Origin == b.origin {
				continue
			}
			apply(event)
		}
	}
}
