package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
)

// SendResult holds both stored copies of a sent message.
type SendResult struct {
	// Sent is the sender's copy (Sent == true).
	Sent *store.Message `json:"sent"`
	// Received is the receiver's copy (Sent == false).
	Received *store.Message `json:"received"`
}

// MessageSender persists a new message for both participants.
// Implementations must store the sender's and the receiver's copy before
// returning and return both copies in the result; notifications are sent
// only after SendMessage succeeds. A nil result or copy fails the send with
// ErrIncompleteSend.
type MessageSender interface {
	SendMessage(ctx context.Context, sender, receiver *store.User, text string) (*SendResult, error)
}

// storeSender is the default MessageSender. It writes both copies to the
// store and bumps the receiver's unread counter.
type storeSender struct {
	store store.Store
	now   func() time.Time
}

func newStoreSender(s store.Store) *storeSender {
	return &storeSender{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// messageCopy builds owner's copy of text exchanged with peer.
func messageCopy(owner, peer *store.User, text string, sent bool, at time.Time) *store.Message {
	return &store.Message{
		OwnerID:     owner.ID,
		UUID:        peer.ID,
		User:        peer.DisplayName(),
		Username:    peer.Username(),
		Text:        text,
		Timestamp:   at,
		Sent:        sent,
		UserStyles:  store.NewUserStyles(peer),
		Contributor: peer.Contributor.Clone(),
		Backer:      peer.Backer.Clone(),
	}
}

// SendMessage stores the pair and increments receiver's unread counter,
// in the store and on receiver itself.
func (d *storeSender) SendMessage(ctx context.Context, sender, receiver *store.User, text string) (*SendResult, error) {
	at := d.now()
	result := &SendResult{
		Received: messageCopy(receiver, sender, text, false, at),
		Sent:     messageCopy(sender, receiver, text, true, at),
	}

	if err := d.store.InsertPair(ctx, result.Received, result.Sent); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	// The pair is already stored; a counter failure is still reported.
	if err := d.store.IncrementNewMessages(ctx, receiver.ID, 1); err != nil {
		return result, fmt.Errorf("increment unread counter: %w", err)
	}
	receiver.Inbox.NewMessages++

	return result, nil
}
