package inbox

import (
	"context"
	"fmt"
	"math"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// InboxOptions selects and shapes a page of the inbox.
type InboxOptions struct {
	// Page is the zero-based page number. Nil returns every message.
	Page *int
	// Conversation restricts the result to one conversation (a peer's user ID).
	Conversation string
	// MapProps rewrites sent copies for display with MapInboxMessage.
	MapProps bool
}

// Page returns a pointer to n, for InboxOptions.Page.
func Page(n int) *int {
	return &n
}

// Inbox returns the user's messages, newest first.
func (m *userMailbox) Inbox(ctx context.Context, opts InboxOptions) ([]*store.Message, error) {
	msgs, err := m.list(ctx, opts, "array")
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// InboxByID returns the same messages as Inbox keyed by message ID.
func (m *userMailbox) InboxByID(ctx context.Context, opts InboxOptions) (map[string]*store.Message, error) {
	msgs, err := m.list(ctx, opts, "map")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*store.Message, len(msgs))
	for _, msg := range msgs {
		byID[msg.ID] = msg
	}
	return byID, nil
}

func (m *userMailbox) list(ctx context.Context, opts InboxOptions, shape string) ([]*store.Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if opts.Page != nil && *opts.Page < 0 {
		return nil, ErrInvalidPage
	}

	var listErr error
	ctx, done := m.service.otel.track(ctx, opList,
		attribute.String("user_id", m.user.ID),
		attribute.String("shape", shape),
	)
	defer func() { done(&listErr, attribute.String("shape", shape)) }()

	q := store.InboxQuery{
		OwnerID: m.user.ID,
		UUID:    opts.Conversation,
	}
	if opts.Page != nil {
		// No store holds enough rows to reach a skip past MaxInt.
		if *opts.Page > math.MaxInt/m.service.opts.pageSize {
			return []*store.Message{}, nil
		}
		q.Limit = m.service.opts.pageSize
		q.Skip = *opts.Page * m.service.opts.pageSize
	}

	msgs, err := m.service.store.Find(ctx, q)
	if err != nil {
		listErr = err
		return nil, wrapStoreError("list messages", err)
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}

	if opts.MapProps {
		for _, msg := range msgs {
			MapInboxMessage(msg, m.user)
		}
	}
	return msgs, nil
}

// Get returns the user's message with the given ID, or nil if the user
// has no such message.
func (m *userMailbox) Get(ctx context.Context, messageID string) (*store.Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	var getErr error
	ctx, done := m.service.otel.track(ctx, opGet,
		attribute.String("user_id", m.user.ID),
		attribute.String("message_id", messageID),
	)
	defer func() { done(&getErr) }()

	msg, err := m.service.store.FindOne(ctx, m.user.ID, messageID)
	if err != nil {
		if store.IsAbsent(err) {
			return nil, nil
		}
		getErr = err
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// MapInboxMessage rewrites msg for display to viewer and returns it.
//
// A sent copy describes the receiver in its peer fields. Those move to the
// To* fields, and the peer fields are replaced with the viewer, so every
// row shows its author. Received copies are returned untouched.
// msg is modified in place.
func MapInboxMessage(msg *store.Message, viewer *store.User) *store.Message {
	if msg == nil || !msg.Sent || viewer == nil {
		return msg
	}

	msg.ToUUID = msg.UUID
	msg.ToUser = msg.User
	msg.ToUserName = msg.Username
	msg.ToUserContributor = msg.Contributor
	msg.ToUserBacker = msg.Backer

	msg.UUID = viewer.ID
	msg.User = viewer.DisplayName()
	msg.Username = viewer.Username()
	msg.Contributor = viewer.Contributor.Clone()
	msg.Backer = viewer.Backer.Clone()
	return msg
}
