package mongo

import (
	"context"
	"fmt"

	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userStyleProjection is the field set loaded for conversation peers.
var userStyleProjection = bson.D{
	bson.E{Key: "_id", Value: 1},
	bson.E{Key: "contributor", Value: 1},
	bson.E{Key: "backer", Value: 1},
	bson.E{Key: "items", Value: 1},
	bson.E{Key: "preferences", Value: 1},
	bson.E{Key: "stats", Value: 1},
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

	cursor, err := s.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		mongoopts.Find().SetProjection(userStyleProjection),
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*store.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// SetNewMessages sets the user's unread counter.
func (s *Store) SetNewMessages(ctx context.Context, userID string, n int) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"inbox.newMessages": n}})
}

// IncrementNewMessages adds delta to the user's unread counter.
func (s *Store) IncrementNewMessages(ctx context.Context, userID string, delta int) error {
	return s.updateUser(ctx, userID, bson.M{"$inc": bson.M{"inbox.newMessages": delta}})
}

func (s *Store) updateUser(ctx context.Context, userID string, update bson.M) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
