package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	redisclient "github.com/hearthtable/marketplace/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 100

// sessionPattern matches every per-user auth-state channel
const sessionPattern = providers.EventChannelSessionPrefix + "*"

// RedisEventBus relays auth-state events between API instances. Each instance
// holds a single pattern subscription on the session channels and fans
// messages out to its own local subscribers, so open streams cost no extra
// Redis connections.
type RedisEventBus struct {
	client *redisclient.Client
	local  *MemoryEventBus

	once   sync.Once
	pubsub *redis.PubSub
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a Redis-backed event bus. The pattern subscription
// is opened on the first Subscribe.
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		local:  NewMemoryEventBus(),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish sends the event through Redis; local subscribers receive it back
// through the pattern subscription like every other instance
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.SessionEvent) error {
	if !strings.HasPrefix(channel, providers.EventChannelSessionPrefix) {
		return fmt.Errorf("channel %q is not a session channel", channel)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Int64("instances", receivers).
		Msg("published session event")
	return nil
}

// Subscribe registers a local subscriber, opening the shared pattern
// subscription if this is the first one
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SessionEvent, error) {
	var startErr error
	b.once.Do(func() {
		startErr = b.start()
	})
	if startErr != nil {
		return nil, startErr
	}
	if b.pubsub == nil {
		return nil, fmt.Errorf("session event relay is not running")
	}
	return b.local.Subscribe(ctx, channel)
}

func (b *RedisEventBus) start() error {
	pubsub := b.client.Client().PSubscribe(b.ctx, sessionPattern)
	// Receive blocks until Redis confirms the subscription
	if _, err := pubsub.Receive(b.ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", sessionPattern, err)
	}
	b.pubsub = pubsub

	go b.relay(pubsub.Channel())
	log.Info().Str("pattern", sessionPattern).Msg("session event relay started")
	return nil
}

// relay decodes messages from Redis and hands them to local subscribers until
// the bus is closed
func (b *RedisEventBus) relay(messages <-chan *redis.Message) {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (b *RedisEventBus) dispatch(channel, payload string) {
	if b.local.SubscriberCount(channel) == 0 {
		return
	}

	var event entities.SessionEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed session event")
		return
	}
	_ = b.local.Publish(b.ctx, channel, &event)
}

// Unsubscribe drops this instance's subscribers of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return b.local.Unsubscribe(ctx, channel)
}

// Close stops the relay and closes every local subscriber
func (b *RedisEventBus) Close() error {
	b.cancel()

	var err error
	if b.pubsub != nil {
		if closeErr := b.pubsub.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close session subscription: %w", closeErr)
		}
		<-b.done
	}

	if closeErr := b.local.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	log.Info().Msg("event bus closed")
	return err
}
