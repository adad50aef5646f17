package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/inbox/store"
)

// InsertPair stores both copies in one transaction.
func (s *Store) InsertPair(ctx context.Context, received, sent *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	now := time.Now().UTC()
	rows := make([]*messageRow, 0, 2)
	for _, m := range []*store.Message{received, sent} {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		row, err := messageToRow(m)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (:id, :owner_id, :uuid, :peer_name, :peer_username, :text, :timestamp, :sent, :user_styles, :contributor, :backer)
	`, s.opts.table, messageColumns)

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateEntry
			}
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrTransactionFailed, err)
	}
	return nil
}

// DeleteOne removes the owner's message with the given id.
func (s *Store) DeleteOne(ctx context.Context, ownerID, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, s.opts.table)
	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteByOwner removes every message owned by ownerID.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, s.opts.table)
	result, err := s.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return result.RowsAffected()
}
