package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/inbox/store"
)

// InsertPair stores both copies under a single lock.
func (s *Store) InsertPair(ctx context.Context, received, sent *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Work on copies so a rejected pair leaves the caller's messages untouched.
	pair := []*store.Message{received.Clone(), sent.Clone()}
	now := time.Now().UTC()
	for _, m := range pair {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		if _, exists := s.messages[m.ID]; exists {
			return store.ErrDuplicateEntry
		}
	}
	if pair[0].ID == pair[1].ID {
		return store.ErrDuplicateEntry
	}
	for _, m := range pair {
		s.messages[m.ID] = m.Clone()
	}
	received.ID, received.Timestamp = pair[0].ID, pair[0].Timestamp
	sent.ID, sent.Timestamp = pair[1].ID, pair[1].Timestamp
	return nil
}

// Insert stores a single message copy. Intended for seeding tests.
func (s *Store) Insert(ctx context.Context, m *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if _, exists := s.messages[m.ID]; exists {
		return store.ErrDuplicateEntry
	}
	s.messages[m.ID] = m.Clone()
	return nil
}

// FindOne returns the owner's message with the given id.
func (s *Store) FindOne(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok || m.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// DeleteOne removes the owner's message with the given id.
func (s *Store) DeleteOne(ctx context.Context, ownerID, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// DeleteByOwner removes every message owned by ownerID.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, m := range s.messages {
		if m.OwnerID == ownerID {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

// Find returns the owner's messages newest first.
func (s *Store) Find(ctx context.Context, q store.InboxQuery) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]*store.Message, 0)
	for _, m := range s.messages {
		if m.OwnerID != q.OwnerID {
			continue
		}
		if q.UUID != "" && m.UUID != q.UUID {
			continue
		}
		matched = append(matched, m.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, store.NewerFirst)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []*store.Message{}, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Paged() && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// ownedOldestFirst returns the owner's messages in the order the grouping
// operations treat as chronological.
func (s *Store) ownedOldestFirst(ownerID string, keep func(*store.Message) bool) []*store.Message {
	s.mu.RLock()
	var out []*store.Message
	for _, m := range s.messages {
		if m.OwnerID == ownerID && keep(m) {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *store.Message) int {
		return store.NewerFirst(b, a)
	})
	return out
}

// GroupConversations groups the owner's messages by conversation.
func (s *Store) GroupConversations(ctx context.Context, ownerID string) ([]store.ConversationGroup, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	msgs := s.ownedOldestFirst(ownerID, func(*store.Message) bool { return true })

	groups := make(map[string]*store.ConversationGroup)
	for _, m := range msgs {
		g, ok := groups[m.UUID]
		if !ok {
			g = &store.ConversationGroup{UUID: m.UUID}
			groups[m.UUID] = g
		}
		g.User = m.User
		g.Username = m.Username
		g.Timestamp = m.Timestamp
		g.Text = m.Text
		g.Count++
	}

	out := make([]store.ConversationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b store.ConversationGroup) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.UUID < b.UUID:
			return -1
		case a.UUID > b.UUID:
			return 1
		}
		return 0
	})
	return out, nil
}

// PeerStyles returns the latest received peer attributes per conversation.
func (s *Store) PeerStyles(ctx context.Context, ownerID string, uuids []string) (map[string]store.PeerStyles, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(uuids))
	for _, u := range uuids {
		wanted[u] = true
	}

	msgs := s.ownedOldestFirst(ownerID, func(m *store.Message) bool {
		return !m.Sent && wanted[m.UUID]
	})

	out := make(map[string]store.PeerStyles)
	for _, m := range msgs {
		out[m.UUID] = store.PeerStyles{
			UUID:        m.UUID,
			UserStyles:  m.UserStyles,
			Contributor: m.Contributor,
			Backer:      m.Backer,
		}
	}
	return out, nil
}
