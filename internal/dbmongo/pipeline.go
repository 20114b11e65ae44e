package dbmongo

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"supportrelay/internal/common"
)

// messageFilterDoc translates a MessageFilter into a query document.
// Search input is escaped so it matches literally.
func messageFilterDoc(f common.MessageFilter) bson.M {
	doc := bson.M{}
	if f.ConversationID != "" {
		doc["conversationId"] = f.ConversationID
	}
	if f.UserID != "" {
		doc["userId"] = f.UserID
	}
	switch {
	case len(f.Roles) > 0:
		roles := make([]string, 0, len(f.Roles))
		for _, r := range f.Roles {
			roles = append(roles, r.String())
		}
		doc["role"] = bson.M{"$in": roles}
	case f.Role != "":
		doc["role"] = f.Role.String()
	}
	if f.IsRead != nil {
		doc["isRead"] = *f.IsRead
	}
	if !f.Since.IsZero() {
		doc["timestamp"] = bson.M{"$gte": f.Since}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := regexp.QuoteMeta(s)
		doc["$or"] = bson.A{
			bson.M{"message": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"conversationId": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return doc
}

func conversationFilterDoc(q common.SummaryQuery) bson.M {
	doc := bson.M{}
	if q.Priority != "" {
		doc["priority"] = q.Priority.String()
	}
	if q.AssignedModerator != "" {
		doc["assignedModerator"] = q.AssignedModerator
	}
	return doc
}

// summaryPage is the shape produced by the $facet stage
type summaryPage struct {
	Items []*common.ConversationSummary `bson:"items"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

// summarizePipeline groups message rows per conversation, joins the
// conversation record, filters and pages in a single round trip.
func summarizePipeline(q common.SummaryQuery) mongo.Pipeline {
	viewer := q.Viewer
	if viewer == "" {
		viewer = common.ViewerModerator
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: messageFilterDoc(common.MessageFilter{UserID: q.UserID, Search: q.Search})}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$conversationId"},
			{Key: "userId", Value: bson.M{"$first": "$userId"}},
			{Key: "lastMessage", Value: bson.M{"$last": "$message"}},
			{Key: "lastTimestamp", Value: bson.M{"$last": "$timestamp"}},
			{Key: "messageCount", Value: bson.M{"$sum": 1}},
			{Key: "unreadCount", Value: bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$role", viewer.UnreadRole().String()}},
					bson.M{"$eq": bson.A{"$isRead", false}},
				}},
				1, 0,
			}}}},
			{Key: "hasModeratorMessages", Value: bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$role", common.RoleModerator.String()}},
				1, 0,
			}}}},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ConversationsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "conversation"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$conversation"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "priority", Value: bson.M{"$ifNull": bson.A{"$conversation.priority", common.PriorityMedium.String()}}},
			{Key: "assignedModerator", Value: "$conversation.assignedModerator"},
			{Key: "assignedAt", Value: "$conversation.assignedAt"},
			{Key: "assignedBy", Value: "$conversation.assignedBy"},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "conversation", Value: 0}}}},
	}

	if convFilter := conversationFilterDoc(q); len(convFilter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: convFilter}})
	}

	direction := -1
	if q.SortAsc {
		direction = 1
	}
	items := bson.A{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "lastTimestamp", Value: direction}, {Key: "_id", Value: 1}}}},
	}
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		items = append(items,
			bson.D{{Key: "$skip", Value: int64((page - 1) * q.Limit)}},
			bson.D{{Key: "$limit", Value: int64(q.Limit)}},
		)
	}

	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "items", Value: items},
		{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "count"}}}},
	}}})
	return pipeline
}

func priorityStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$ifNull": bson.A{"$priority", common.PriorityMedium.String()}}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
