package memory

import (
	"context"

	"github.com/rbaliyan/inbox/store"
)

// PutUser stores or replaces a user.
func (s *Store) PutUser(u *store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
}

// User returns a copy of the stored user, or nil.
func (s *Store) User(id string) *store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id].Clone()
}

// FindUsers returns the known users among ids, in the order given.
func (s *Store) FindUsers(ctx context.Context, ids []string) ([]*store.User, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// SetNewMessages sets the unread counter.
func (s *Store) SetNewMessages(ctx context.Context, userID string, n int) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	u.Inbox.NewMessages = n
	return nil
}

// IncrementNewMessages adds delta to the unread counter.
func (s *Store) IncrementNewMessages(ctx context.Context, userID string, delta int) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	u.Inbox.NewMessages += delta
	return nil
}
