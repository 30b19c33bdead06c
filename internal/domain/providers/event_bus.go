package providers

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to session events
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.SessionEvent) error

	// Subscribe returns a channel of events that closes when ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.SessionEvent, error)

	// Unsubscribe drops every subscriber of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelSessionPrefix prefixes the per-user auth-state channel
const EventChannelSessionPrefix = "session:"

// GetSessionChannel returns the channel name for a user's auth-state events
func GetSessionChannel(userID string) string {
	return EventChannelSessionPrefix + userID
}
