package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/rbaliyan/inbox/store"
)

// buildFindUsersQuery projects the avatar-related parts of each user document.
func buildFindUsersQuery(usersTable string) string {
	return fmt.Sprintf(`
		SELECT id, jsonb_build_object(
			'contributor', doc->'contributor',
			'backer', doc->'backer',
			'items', doc->'items',
			'preferences', doc->'preferences',
			'stats', doc->'stats'
		) AS doc
		FROM %s
		WHERE id = ANY($1)`, usersTable)
}

// buildSetCounterQuery writes inbox.newMessages, creating the inbox object
// when the document has none. $2 is the new value expression's argument.
func buildSetCounterQuery(usersTable string, increment bool) string {
	value := `$2::int`
	if increment {
		value = `COALESCE((doc->'inbox'->>'newMessages')::int, 0) + $2::int`
	}
	return fmt.Sprintf(`
		UPDATE %s
		SET doc = doc || jsonb_build_object(
			'inbox', COALESCE(doc->'inbox', '{}'::jsonb) || jsonb_build_object('newMessages', %s)
		)
		WHERE id = $1`, usersTable, value)
}

type userRow struct {
	ID  string `db:"id"`
	Doc []byte `db:"doc"`
}

// FindUsers loads the users with the given ids.
func (s *Store) FindUsers(ctx context.Context, ids []string) ([]*store.User, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*store.User{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, buildFindUsersQuery(s.opts.usersTable), pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	users := make([]*store.User, 0, len(rows))
	for _, r := range rows {
		u, err := decodeUser(r)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func decodeUser(r userRow) (*store.User, error) {
	var u store.User
	if err := json.Unmarshal(r.Doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", r.ID, err)
	}
	u.ID = r.ID
	return &u, nil
}

// SetNewMessages sets the user's unread counter.
func (s *Store) SetNewMessages(ctx context.Context, userID string, n int) error {
	return s.updateCounter(ctx, userID, n, false)
}

// IncrementNewMessages adds delta to the user's unread counter.
func (s *Store) IncrementNewMessages(ctx context.Context, userID string, delta int) error {
	return s.updateCounter(ctx, userID, delta, true)
}

func (s *Store) updateCounter(ctx context.Context, userID string, n int, increment bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, buildSetCounterQuery(s.opts.usersTable, increment), userID, n)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
