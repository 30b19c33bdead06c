package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
)

func receive(t *testing.T, ch <-chan *entities.SessionEvent) *entities.SessionEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryEventBus_FanOut(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetSessionChannel("u1")
	first, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, providers.GetSessionChannel("u2"))
	require.NoError(t, err)

	event := entities.NewSessionEvent(entities.SessionEventSignedIn, "u1", nil)
	require.NoError(t, bus.Publish(ctx, channel, event))

	assert.Equal(t, event.ID, receive(t, first).ID)
	assert.Equal(t, event.ID, receive(t, second).ID)

	select {
	case <-other:
		t.Fatal("event leaked to another user's channel")
	default:
	}
}

func TestMemoryEventBus_CancelRemovesSubscriber(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "session:u1")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount("session:u1"))

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed")
	}
	assert.Equal(t, 0, bus.SubscriberCount("session:u1"))
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus()
	ch, err := bus.Subscribe(context.Background(), "session:u1")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "session:u1")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}
