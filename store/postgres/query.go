package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rbaliyan/inbox/store"
)

// buildFindQuery returns the inbox listing query for q.
func buildFindQuery(table string, q store.InboxQuery) (string, []any) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1`, messageColumns, table)
	args := []any{q.OwnerID}

	if q.UUID != "" {
		args = append(args, q.UUID)
		query += ` AND uuid = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY timestamp DESC, id DESC`

	if q.Paged() {
		args = append(args, q.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if q.Skip > 0 {
		args = append(args, q.Skip)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	return query, args
}

// buildGroupQuery returns the latest row and row count per conversation.
// DISTINCT ON keeps the first row of each uuid in the inner ORDER BY,
// which is the most recent one.
func buildGroupQuery(table string) string {
	return fmt.Sprintf(`
		SELECT uuid, peer_name, peer_username, timestamp, text, count FROM (
			SELECT DISTINCT ON (uuid) uuid, peer_name, peer_username, timestamp, text,
				COUNT(*) OVER (PARTITION BY uuid) AS count
			FROM %s
			WHERE owner_id = $1
			ORDER BY uuid, timestamp DESC, id DESC
		) g
		ORDER BY timestamp DESC, uuid ASC`, table)
}

// buildPeerStylesQuery returns the peer attributes from the latest
// received message of each requested conversation.
func buildPeerStylesQuery(table string) string {
	return fmt.Sprintf(`
		SELECT DISTINCT ON (uuid) uuid, user_styles, contributor, backer
		FROM %s
		WHERE owner_id = $1 AND sent = FALSE AND uuid = ANY($2)
		ORDER BY uuid, timestamp DESC, id DESC`, table)
}

// Find retrieves the owner's messages newest first.
func (s *Store) Find(ctx context.Context, q store.InboxQuery) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query, args := buildFindQuery(s.opts.table, q)

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(rows))
	for i := range rows {
		m, err := rowToMessage(&rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// FindOne retrieves the owner's message with the given id.
func (s *Store) FindOne(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2`, messageColumns, s.opts.table)

	var row messageRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return rowToMessage(&row)
}

type groupRow struct {
	UUID         string    `db:"uuid"`
	PeerName     string    `db:"peer_name"`
	PeerUsername string    `db:"peer_username"`
	Timestamp    time.Time `db:"timestamp"`
	Text         string    `db:"text"`
	Count        int       `db:"count"`
}

// GroupConversations groups the owner's messages by conversation.
func (s *Store) GroupConversations(ctx context.Context, ownerID string) ([]store.ConversationGroup, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, buildGroupQuery(s.opts.table), ownerID); err != nil {
		return nil, fmt.Errorf("group conversations: %w", err)
	}

	groups := make([]store.ConversationGroup, len(rows))
	for i, r := range rows {
		groups[i] = store.ConversationGroup{
			UUID:      r.UUID,
			User:      r.PeerName,
			Username:  r.PeerUsername,
			Timestamp: r.Timestamp.UTC(),
			Text:      r.Text,
			Count:     r.Count,
		}
	}
	return groups, nil
}

type peerRow struct {
	UUID        string  `db:"uuid"`
	UserStyles  *string `db:"user_styles"`
	Contributor *string `db:"contributor"`
	Backer      *string `db:"backer"`
}

// PeerStyles returns the latest received peer attributes per conversation.
func (s *Store) PeerStyles(ctx context.Context, ownerID string, uuids []string) (map[string]store.PeerStyles, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(uuids) == 0 {
		return map[string]store.PeerStyles{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []peerRow
	if err := s.db.SelectContext(ctx, &rows, buildPeerStylesQuery(s.opts.table), ownerID, pq.Array(uuids)); err != nil {
		return nil, fmt.Errorf("peer styles: %w", err)
	}

	styles := make(map[string]store.PeerStyles, len(rows))
	for _, r := range rows {
		us, contributor, backer, err := decodePeer(r.UserStyles, r.Contributor, r.Backer)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", r.UUID, err)
		}
		styles[r.UUID] = store.PeerStyles{
			UUID:        r.UUID,
			UserStyles:  us,
			Contributor: contributor,
			Backer:      backer,
		}
	}
	return styles, nil
}
