package dbmongo

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"supportrelay/internal/common"
)

type messageStore struct {
	coll *mongo.Collection
}

var _ common.MessageStore = (*messageStore)(nil)

func NewMessageStore(mc *MongoClient) common.MessageStore {
	return &messageStore{coll: mc.Database.Collection(MessagesCollection)}
}

func (s *messageStore) Append(ctx context.Context, msg *common.ChatMessage) (string, error) {
	if msg == nil {
		return "", common.NewValidationError("message is required")
	}
	common.ApplyMessageDefaults(msg)
	if err := common.ValidateMessage(msg); err != nil {
		return "", err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.ID = primitive.NewObjectID()

	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return "", common.NewStoreError("append message", errors.Wrapf(err, "insert into %s", MessagesCollection))
	}
	return msg.ID.Hex(), nil
}

func (s *messageStore) FindByConversation(ctx context.Context, conversationID, userID string) ([]*common.ChatMessage, error) {
	filter := messageFilterDoc(common.MessageFilter{ConversationID: conversationID, UserID: userID})
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, common.NewStoreError("find messages", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*common.ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, common.NewStoreError("find messages", errors.Wrap(err, "decode chat messages"))
	}
	return messages, nil
}

func (s *messageStore) FindOne(ctx context.Context, filter common.MessageFilter) (*common.ChatMessage, error) {
	var msg common.ChatMessage
	err := s.coll.FindOne(ctx, messageFilterDoc(filter)).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.NewNotFoundError("message", filter.ConversationID)
	}
	if err != nil {
		return nil, common.NewStoreError("find message", err)
	}
	return &msg, nil
}

func (s *messageStore) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	return s.Count(ctx, common.MessageFilter{ConversationID: conversationID})
}

func (s *messageStore) Count(ctx context.Context, filter common.MessageFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, messageFilterDoc(filter))
	if err != nil {
		return 0, common.NewStoreError("count messages", err)
	}
	return n, nil
}

func (s *messageStore) BulkUpdate(ctx context.Context, filter common.MessageFilter, patch common.MessagePatch) (int64, error) {
	if patch.IsRead == nil {
		return 0, nil
	}
	update := bson.M{"$set": bson.M{"isRead": *patch.IsRead}}

	res, err := s.coll.UpdateMany(ctx, messageFilterDoc(filter), update)
	if err != nil {
		return 0, common.NewStoreError("update messages", err)
	}
	return res.ModifiedCount, nil
}

func (s *messageStore) DeleteByConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return 0, err
	}
	filter := messageFilterDoc(common.MessageFilter{ConversationID: conversationID, UserID: userID})

	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, common.NewStoreError("delete messages", err)
	}
	return res.DeletedCount, nil
}

func (s *messageStore) DistinctConversationIDs(ctx context.Context, filter common.MessageFilter) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "conversationId", messageFilterDoc(filter))
	if err != nil {
		return nil, common.NewStoreError("distinct conversations", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
