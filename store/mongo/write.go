package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// prepare assigns an id and timestamp where missing.
func prepare(m *store.Message, now time.Time) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
}

// InsertPair stores both copies in a transaction.
// If the deployment does not support transactions (standalone server),
// falls back to an ordered InsertMany.
func (s *Store) InsertPair(ctx context.Context, received, sent *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	now := time.Now().UTC()
	prepare(received, now)
	prepare(sent, now)
	docs := []any{messageToDoc(received), messageToDoc(sent)}

	session, err := s.client.StartSession()
	if err != nil {
		return s.insertManyFallback(ctx, docs)
	}
	defer session.EndSession(ctx)

	_, txErr := session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		if _, insertErr := s.collection.InsertMany(sessCtx, docs); insertErr != nil {
			return nil, insertErr
		}
		return nil, nil
	})
	if txErr != nil {
		if isTransactionNotSupported(txErr) {
			return s.insertManyFallback(ctx, docs)
		}
		if mongo.IsDuplicateKeyError(txErr) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("%w: insert message pair: %v", store.ErrTransactionFailed, txErr)
	}
	return nil
}

// insertManyFallback performs a non-transactional InsertMany for standalone deployments.
func (s *Store) insertManyFallback(ctx context.Context, docs []any) error {
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert message pair: %w", err)
	}
	return nil
}

// isTransactionNotSupported checks if the error indicates transactions aren't supported.
func isTransactionNotSupported(err error) bool {
	if err == nil {
		return false
	}
	// 20: IllegalOperation on standalone, 263: OperationNotSupportedInTransaction
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 263 || cmdErr.Code == 20
	}
	return false
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

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "ownerId": ownerID})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if result.DeletedCount == 0 {
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

	result, err := s.collection.DeleteMany(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return result.DeletedCount, nil
}
