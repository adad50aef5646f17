package inbox

import (
	"context"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Conversation is one entry of the conversation list: the latest message
// exchanged with a peer and the peer's display attributes.
type Conversation struct {
	// UUID is the peer's user ID.
	UUID      string    `json:"uuid"`
	User      string    `json:"user,omitempty"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	// Count is the number of messages the user holds in this conversation.
	Count int `json:"count"`

	// Nil when the peer never wrote and their account no longer exists.
	UserStyles  *store.UserStyles  `json:"userStyles,omitempty"`
	Contributor *store.Contributor `json:"contributor,omitempty"`
	Backer      *store.Backer      `json:"backer,omitempty"`
}

// Conversations returns one entry per peer, most recent activity first.
//
// Peer attributes come from the latest message the peer sent. For peers who
// never replied they are read from the peer's account instead.
func (m *userMailbox) Conversations(ctx context.Context) ([]Conversation, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	var convErr error
	ctx, done := m.service.otel.track(ctx, opConversations,
		attribute.String("user_id", m.user.ID),
	)
	defer func() { done(&convErr) }()

	groups, err := m.service.store.GroupConversations(ctx, m.user.ID)
	if err != nil {
		convErr = err
		return nil, wrapStoreError("group conversations", err)
	}
	if len(groups) == 0 {
		return []Conversation{}, nil
	}

	uuids := make([]string, len(groups))
	for i, g := range groups {
		uuids[i] = g.UUID
	}

	styles, err := m.service.store.PeerStyles(ctx, m.user.ID, uuids)
	if err != nil {
		convErr = err
		return nil, wrapStoreError("peer styles", err)
	}
	if styles == nil {
		styles = make(map[string]store.PeerStyles, len(groups))
	}

	var missing []string
	for _, id := range uuids {
		if _, ok := styles[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		peers, err := m.service.store.FindUsers(ctx, missing)
		if err != nil {
			convErr = err
			return nil, wrapStoreError("load peers", err)
		}
		for _, p := range peers {
			styles[p.ID] = store.PeerStylesFromUser(p)
		}
	}

	convs := make([]Conversation, len(groups))
	for i, g := range groups {
		c := Conversation{
			UUID:      g.UUID,
			User:      g.User,
			Username:  g.Username,
			Timestamp: g.Timestamp,
			Text:      g.Text,
			Count:     g.Count,
		}
		if s, ok := styles[g.UUID]; ok {
			c.UserStyles = s.UserStyles
			c.Contributor = s.Contributor
			c.Backer = s.Backer
		}
		convs[i] = c
	}
	return convs, nil
}
