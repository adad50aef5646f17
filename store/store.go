// Package store provides interfaces and types for inbox storage.
// Implementations are in store/mongo, store/memory, and store/postgres subpackages.
//
// Every private message is stored twice, once per participant. Each copy is
// owned by one user (OwnerID) and keyed to the conversation by UUID, the id
// of the other participant. All reads and deletes are scoped by owner.
//
// Multi-row writes use database transactions where the backend supports
// them. The one operation that spans both stores (clearing an inbox and
// resetting the unread counter) is deliberately not transactional; see the
// root package.
package store

import (
	"context"
)

// MessageStore persists per-owner message copies.
type MessageStore interface {
	// InsertPair stores the receiver's and the sender's copy of one message.
	// Empty IDs are assigned by the store. Implementations insert both or
	// neither where the backend allows it.
	InsertPair(ctx context.Context, received, sent *Message) error

	// Find returns the owner's messages newest first, filtered and paged by q.
	Find(ctx context.Context, q InboxQuery) ([]*Message, error)

	// FindOne returns the message with the given id if it belongs to ownerID.
	// Returns ErrNotFound otherwise.
	FindOne(ctx context.Context, ownerID, id string) (*Message, error)

	// DeleteOne removes the message with the given id if it belongs to ownerID.
	// Returns ErrNotFound when nothing was removed.
	DeleteOne(ctx context.Context, ownerID, id string) error

	// DeleteByOwner removes every message owned by ownerID.
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)

	// GroupConversations groups the owner's messages by UUID. Each group
	// carries the values of its most recent message and the group size.
	// Groups are ordered by that timestamp, newest first.
	GroupConversations(ctx context.Context, ownerID string) ([]ConversationGroup, error)

	// PeerStyles returns, for each uuid in uuids that has at least one
	// received message (Sent == false), the denormalized peer attributes
	// from the most recent such message. Keyed by uuid.
	PeerStyles(ctx context.Context, ownerID string, uuids []string) (map[string]PeerStyles, error)
}

// UserStore is the slice of user persistence the inbox needs.
type UserStore interface {
	// FindUsers loads the users with the given ids. Only ID, Contributor,
	// Backer, Items, Preferences and Stats are guaranteed to be populated.
	// Unknown ids are skipped.
	FindUsers(ctx context.Context, ids []string) ([]*User, error)

	// SetNewMessages sets the user's unread private message counter.
	SetNewMessages(ctx context.Context, userID string, n int) error

	// IncrementNewMessages adds delta to the user's unread counter.
	IncrementNewMessages(ctx context.Context, userID string, delta int) error
}

// Store combines message and user persistence with a connection lifecycle.
type Store interface {
	MessageStore
	UserStore

	// Connect prepares the backend (schema, indexes).
	Connect(ctx context.Context) error
	// Close marks the store as disconnected.
	Close(ctx context.Context) error
}
