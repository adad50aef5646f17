package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for inbox events.
const (
	EventNameMessageSent    = "inbox.message.sent"
	EventNameMessageDeleted = "inbox.message.deleted"
	EventNameInboxCleared   = "inbox.cleared"
)

// MessageSentEvent is published after both copies of a message are stored.
type MessageSentEvent struct {
	SentMessageID     string    `json:"sent_message_id"`
	ReceivedMessageID string    `json:"received_message_id"`
	SenderID          string    `json:"sender_id"`
	ReceiverID        string    `json:"receiver_id"`
	SentAt            time.Time `json:"sent_at"`
}

// MessageDeletedEvent is published when an owner deletes one message copy.
type MessageDeletedEvent struct {
	MessageID string    `json:"message_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// InboxClearedEvent is published when an owner clears all messages.
type InboxClearedEvent struct {
	OwnerID      string    `json:"owner_id"`
	DeletedCount int64     `json:"deleted_count"`
	ClearedAt    time.Time `json:"cleared_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
type ServiceEvents struct {
	// MessageSent is published when a message is sent.
	MessageSent event.Event[MessageSentEvent]

	// MessageDeleted is published when a message copy is deleted.
	MessageDeleted event.Event[MessageDeletedEvent]

	// InboxCleared is published when an inbox is cleared.
	InboxCleared event.Event[InboxClearedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MessageSent:    event.New[MessageSentEvent](namePrefix + "." + EventNameMessageSent),
		MessageDeleted: event.New[MessageDeletedEvent](namePrefix + "." + EventNameMessageDeleted),
		InboxCleared:   event.New[InboxClearedEvent](namePrefix + "." + EventNameInboxCleared),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MessageSent); err != nil {
		return fmt.Errorf("register MessageSent: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageDeleted); err != nil {
		return fmt.Errorf("register MessageDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.InboxCleared); err != nil {
		return fmt.Errorf("register InboxCleared: %w", err)
	}
	return nil
}

// publishEvent publishes ev and applies the service's event error policy.
// It returns a non-nil error only when event errors are fatal.
func publishEvent[T any](ctx context.Context, s *service, name string, ev event.Event[T], payload T, messageID string) error {
	err := ev.Publish(ctx, payload)
	if err == nil {
		return nil
	}
	if s.opts.eventErrorsFatal {
		return &EventPublishError{Event: name, MessageID: messageID, Err: err}
	}
	s.opts.safeEventPublishFailure(name, err)
	return nil
}
