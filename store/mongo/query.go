package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// newestFirst is the inbox order. _id breaks timestamp ties so pages
// do not overlap.
var newestFirst = bson.D{
	bson.E{Key: "timestamp", Value: -1},
	bson.E{Key: "_id", Value: -1},
}

// oldestFirst is applied before every $group so $last is the latest row.
var oldestFirst = bson.D{
	bson.E{Key: "timestamp", Value: 1},
	bson.E{Key: "_id", Value: 1},
}

// inboxFilter builds the Find filter for q.
func inboxFilter(q store.InboxQuery) bson.M {
	filter := bson.M{"ownerId": q.OwnerID}
	if q.UUID != "" {
		filter["uuid"] = q.UUID
	}
	return filter
}

// conversationsPipeline groups an owner's messages by uuid, keeping the
// latest display fields and the group size, newest conversation first.
func conversationsPipeline(ownerID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ownerId": ownerID}}},
		{{Key: "$sort", Value: oldestFirst}},
		{{Key: "$group", Value: bson.D{
			bson.E{Key: "_id", Value: "$uuid"},
			bson.E{Key: "user", Value: bson.M{"$last": "$user"}},
			bson.E{Key: "username", Value: bson.M{"$last": "$username"}},
			bson.E{Key: "timestamp", Value: bson.M{"$last": "$timestamp"}},
			bson.E{Key: "text", Value: bson.M{"$last": "$text"}},
			bson.E{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{
			bson.E{Key: "timestamp", Value: -1},
			bson.E{Key: "_id", Value: 1},
		}}},
	}
}

// peerStylesPipeline picks the peer attributes recorded on the latest
// message each peer sent to the owner.
func peerStylesPipeline(ownerID string, uuids []string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ownerId": ownerID,
			"uuid":    bson.M{"$in": uuids},
			"sent":    false,
		}}},
		{{Key: "$sort", Value: oldestFirst}},
		{{Key: "$group", Value: bson.D{
			bson.E{Key: "_id", Value: "$uuid"},
			bson.E{Key: "userStyles", Value: bson.M{"$last": "$userStyles"}},
			bson.E{Key: "contributor", Value: bson.M{"$last": "$contributor"}},
			bson.E{Key: "backer", Value: bson.M{"$last": "$backer"}},
		}}},
	}
}

// Find retrieves the owner's messages newest first.
func (s *Store) Find(ctx context.Context, q store.InboxQuery) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	findOpts := mongoopts.Find().SetSort(newestFirst)
	if q.Skip > 0 {
		findOpts.SetSkip(int64(q.Skip))
	}
	if q.Paged() {
		findOpts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.collection.Find(ctx, inboxFilter(q), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	messages := make([]*store.Message, len(docs))
	for i := range docs {
		messages[i] = docToMessage(&docs[i])
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

	filter := bson.M{
		"_id":     id,
		"ownerId": ownerID,
	}

	var doc messageDoc
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}

	return docToMessage(&doc), nil
}

// GroupConversations groups the owner's messages by conversation.
func (s *Store) GroupConversations(ctx context.Context, ownerID string) ([]store.ConversationGroup, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cursor, err := s.collection.Aggregate(ctx, conversationsPipeline(ownerID))
	if err != nil {
		return nil, fmt.Errorf("aggregate conversations: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []store.ConversationGroup{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	for i := range groups {
		groups[i].Timestamp = groups[i].Timestamp.UTC()
	}
	return groups, nil
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

	cursor, err := s.collection.Aggregate(ctx, peerStylesPipeline(ownerID, uuids))
	if err != nil {
		return nil, fmt.Errorf("aggregate peer styles: %w", err)
	}
	defer cursor.Close(ctx)

	var results []store.PeerStyles
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode peer styles: %w", err)
	}

	styles := make(map[string]store.PeerStyles, len(results))
	for _, r := range results {
		styles[r.UUID] = r
	}
	return styles, nil
}
