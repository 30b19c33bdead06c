package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	redisclient "github.com/hearthtable/marketplace/internal/infrastructure/clients/redis"
)

func newOfflineBus() *RedisEventBus {
	// The address is never dialled by these tests
	return NewRedisEventBus(redisclient.NewFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})))
}

func TestRedisEventBus_DispatchFansOutLocally(t *testing.T) {
	bus := newOfflineBus()
	defer bus.local.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetSessionChannel("u1")
	events, err := bus.local.Subscribe(ctx, channel)
	require.NoError(t, err)

	payload, err := json.Marshal(&entities.SessionEvent{ID: "e1", Type: entities.SessionEventSignedOut, UserID: "u1"})
	require.NoError(t, err)

	bus.dispatch(channel, string(payload))

	ev := receive(t, events)
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, entities.SessionEventSignedOut, ev.Type)
}

func TestRedisEventBus_DispatchDropsMalformedPayload(t *testing.T) {
	bus := newOfflineBus()
	defer bus.local.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetSessionChannel("u1")
	events, err := bus.local.Subscribe(ctx, channel)
	require.NoError(t, err)

	bus.dispatch(channel, "{not json")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestRedisEventBus_PublishRejectsForeignChannel(t *testing.T) {
	bus := newOfflineBus()

	err := bus.Publish(context.Background(), "listings:l1", &entities.SessionEvent{ID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a session channel")
}
