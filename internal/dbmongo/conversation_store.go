package dbmongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"supportrelay/internal/common"
)

const assignmentCounter = "assignment"

type conversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	counters      *mongo.Collection
}

var _ common.ConversationStore = (*conversationStore)(nil)

func NewConversationStore(mc *MongoClient) common.ConversationStore {
	return &conversationStore{
		conversations: mc.Database.Collection(ConversationsCollection),
		messages:      mc.Database.Collection(MessagesCollection),
		counters:      mc.Database.Collection(CountersCollection),
	}
}

// Ensure upserts the record; only the writer that inserts it sees created=true.
func (s *conversationStore) Ensure(ctx context.Context, conversationID, userID string, now time.Time) (bool, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return false, err
	}
	if userID == "" {
		userID = common.AnonymousUser
	}

	update := bson.M{"$setOnInsert": bson.M{
		"userId":    userID,
		"priority":  common.PriorityMedium.String(),
		"createdAt": now,
		"updatedAt": now,
	}}
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// lost the insert race to a concurrent first message
		return false, nil
	}
	if err != nil {
		return false, common.NewStoreError("ensure conversation", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *conversationStore) Get(ctx context.Context, conversationID string) (*common.Conversation, error) {
	var conv common.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.NewNotFoundError("conversation", conversationID)
	}
	if err != nil {
		return nil, common.NewStoreError("get conversation", err)
	}
	if conv.Priority == "" {
		conv.Priority = common.PriorityMedium
	}
	return &conv, nil
}

func (s *conversationStore) SetPriority(ctx context.Context, conversationID string, priority common.Priority) error {
	if !priority.IsValid() {
		return common.NewValidationError("Invalid priority level.")
	}
	return s.updateOne(ctx, "set priority", conversationID, bson.M{
		"priority":  priority.String(),
		"updatedAt": time.Now().UTC(),
	})
}

// SetAssignment stamps the record with the next assignment sequence number so
// LatestAssignment stays exact when assignedAt values collide at millisecond precision.
func (s *conversationStore) SetAssignment(ctx context.Context, conversationID string, a common.Assignment) error {
	seq, err := s.nextAssignmentSeq(ctx)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, "set assignment", conversationID, bson.M{
		"assignedModerator": a.ModeratorID,
		"assignedBy":        a.AssignedBy,
		"assignedAt":        a.AssignedAt,
		"assignmentSeq":     seq,
		"updatedAt":         a.AssignedAt,
	})
}

func (s *conversationStore) nextAssignmentSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": assignmentCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, common.NewStoreError("next assignment sequence", err)
	}
	return counter.Seq, nil
}

func (s *conversationStore) updateOne(ctx context.Context, op, conversationID string, set bson.M) error {
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": set})
	if err != nil {
		return common.NewStoreError(op, err)
	}
	if res.MatchedCount == 0 {
		return common.NewNotFoundError("conversation", conversationID)
	}
	return nil
}

func (s *conversationStore) LatestAssignment(ctx context.Context) (*common.Conversation, error) {
	filter := bson.M{"assignedAt": bson.M{"$exists": true, "$ne": nil}}
	opts := options.FindOne().SetSort(bson.D{
		{Key: "assignmentSeq", Value: -1},
		{Key: "assignedAt", Value: -1},
		{Key: "_id", Value: -1},
	})

	var conv common.Conversation
	err := s.conversations.FindOne(ctx, filter, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewStoreError("latest assignment", err)
	}
	return &conv, nil
}

func (s *conversationStore) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.conversations.DeleteOne(ctx, bson.M{"_id": conversationID}); err != nil {
		return common.NewStoreError("delete conversation", err)
	}
	return nil
}

func (s *conversationStore) Count(ctx context.Context) (int64, error) {
	n, err := s.conversations.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, common.NewStoreError("count conversations", err)
	}
	return n, nil
}

func (s *conversationStore) PriorityStats(ctx context.Context) ([]common.PriorityCount, error) {
	cursor, err := s.conversations.Aggregate(ctx, priorityStatsPipeline())
	if err != nil {
		return nil, common.NewStoreError("priority stats", err)
	}
	defer cursor.Close(ctx)

	stats := make([]common.PriorityCount, 0)
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, common.NewStoreError("priority stats", errors.Wrap(err, "decode priority counts"))
	}
	return stats, nil
}

// Summarize runs the projection over chat rows; see summarizePipeline.
func (s *conversationStore) Summarize(ctx context.Context, q common.SummaryQuery) (*common.SummaryPage, error) {
	cursor, err := s.messages.Aggregate(ctx, summarizePipeline(q), options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.NewStoreError("summarize conversations", err)
	}
	defer cursor.Close(ctx)

	var pages []summaryPage
	if err := cursor.All(ctx, &pages); err != nil {
		return nil, common.NewStoreError("summarize conversations", errors.Wrap(err, "decode summary page"))
	}

	out := &common.SummaryPage{Items: make([]*common.ConversationSummary, 0)}
	if len(pages) == 0 {
		return out, nil
	}
	if pages[0].Items != nil {
		out.Items = pages[0].Items
	}
	if len(pages[0].Total) > 0 {
		out.Total = pages[0].Total[0].Count
	}
	return out, nil
}
