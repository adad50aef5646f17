package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Delete removes the user's message with the given ID. It reports false,
// with a nil error, if the user has no such message.
func (m *userMailbox) Delete(ctx context.Context, messageID string) (deleted bool, retErr error) {
	if err := m.checkAccess(); err != nil {
		return false, err
	}

	ctx, done := m.service.otel.track(ctx, opDelete,
		attribute.String("user_id", m.user.ID),
		attribute.String("message_id", messageID),
	)
	defer func() { done(&retErr, attribute.Bool("deleted", deleted)) }()

	if _, err := m.service.store.FindOne(ctx, m.user.ID, messageID); err != nil {
		if store.IsAbsent(err) {
			return false, nil
		}
		return false, fmt.Errorf("get message: %w", err)
	}

	if err := m.service.store.DeleteOne(ctx, m.user.ID, messageID); err != nil {
		// Removed by a concurrent delete since FindOne.
		if store.IsAbsent(err) {
			return false, nil
		}
		return false, wrapStoreError("delete message", err)
	}

	if err := publishEvent(ctx, m.service, "MessageDeleted", m.service.events.MessageDeleted, MessageDeletedEvent{
		MessageID: messageID,
		OwnerID:   m.user.ID,
		DeletedAt: time.Now().UTC(),
	}, messageID); err != nil {
		return true, err
	}
	return true, nil
}

// Clear removes all of the user's messages and resets their unread counter,
// in the store and on the client's user.
//
// The two writes run concurrently and are not atomic. If one fails the
// other is not rolled back; the first error is returned.
func (m *userMailbox) Clear(ctx context.Context) (retErr error) {
	if err := m.checkAccess(); err != nil {
		return err
	}

	ctx, done := m.service.otel.track(ctx, opClear,
		attribute.String("user_id", m.user.ID),
	)
	defer func() { done(&retErr) }()

	var (
		g       errgroup.Group
		deleted int64
	)
	g.Go(func() error {
		if err := m.service.store.SetNewMessages(ctx, m.user.ID, 0); err != nil {
			return wrapStoreError("reset unread counter", err)
		}
		m.user.Inbox.NewMessages = 0
		return nil
	})
	g.Go(func() error {
		n, err := m.service.store.DeleteByOwner(ctx, m.user.ID)
		if err != nil {
			return wrapStoreError("delete messages", err)
		}
		deleted = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return publishEvent(ctx, m.service, "InboxCleared", m.service.events.InboxCleared, InboxClearedEvent{
		OwnerID:      m.user.ID,
		DeletedCount: deleted,
		ClearedAt:    time.Now().UTC(),
	}, "")
}
