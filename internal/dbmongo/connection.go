// Package dbmongo stores chat rows and conversation records in MongoDB.
package dbmongo

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"supportrelay/internal/config"
)

const (
	MessagesCollection      = "chat_messages"
	ConversationsCollection = "conversations"
	CountersCollection      = "counters"
	TranscriptsBucket       = "transcripts"
)

type MongoClient struct {
	Client      *mongo.Client
	Database    *mongo.Database
	Transcripts *gridfs.Bucket
}

func NewMongoConnection(c *config.Config) (*MongoClient, error) {
	uri := c.GetMongoURI()
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database := client.Database(c.MongoDB.Database)
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(TranscriptsBucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create GridFSBucket: %w", err)
	}

	mc := &MongoClient{
		Client:      client,
		Database:    database,
		Transcripts: bucket,
	}
	if err := mc.EnsureIndexes(ctx); err != nil {
		// the service still works without indexes, only slower
		log.WithError(err).Warn("could not create mongo indexes")
	}

	log.WithField("database", c.MongoDB.Database).Info("connected to MongoDB")
	return mc, nil
}

// EnsureIndexes creates the indexes the projection and round robin rely on
func (mc *MongoClient) EnsureIndexes(ctx context.Context) error {
	_, err := mc.Database.Collection(MessagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "role", Value: 1}, {Key: "isRead", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	_, err = mc.Database.Collection(ConversationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignmentSeq", Value: -1}, {Key: "assignedAt", Value: -1}}},
		{Keys: bson.D{{Key: "assignedModerator", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create conversation indexes: %w", err)
	}
	return nil
}

func (mc *MongoClient) Close(ctx context.Context) error {
	return mc.Client.Disconnect(ctx)
}
