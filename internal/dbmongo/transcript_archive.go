package dbmongo

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"supportrelay/internal/common"
)

// TranscriptArchive keeps deleted conversations in a GridFS bucket
type TranscriptArchive struct {
	gridFS *gridfs.Bucket
}

var (
	_ common.TranscriptArchive = (*TranscriptArchive)(nil)
	_ common.TranscriptReader  = (*TranscriptArchive)(nil)
)

func NewTranscriptArchive(mongoClient *MongoClient) *TranscriptArchive {
	return &TranscriptArchive{
		gridFS: mongoClient.Transcripts,
	}
}

// Archive stores content and returns the GridFS file id
func (ta *TranscriptArchive) Archive(ctx context.Context, conversationID string, content io.Reader) (string, error) {
	archivedAt := time.Now().UTC()
	metadata := bson.M{
		"conversation_id": conversationID,
		"content_type":    "application/json",
		"archived_at":     archivedAt,
	}

	filename := fmt.Sprintf("%s_%d.json", conversationID, archivedAt.UnixMilli())
	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := ta.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return "", common.NewStoreError("archive transcript", err)
	}

	if err := stream.SetWriteDeadline(deadline(ctx)); err != nil {
		_ = stream.Abort()
		return "", common.NewStoreError("archive transcript", err)
	}
	if _, err := io.Copy(stream, content); err != nil {
		_ = stream.Abort()
		return "", common.NewStoreError("archive transcript", fmt.Errorf("copy failed: %w", err))
	}
	// Close flushes the last chunk and writes the files document
	if err := stream.Close(); err != nil {
		return "", common.NewStoreError("archive transcript", err)
	}

	return stream.FileID.(primitive.ObjectID).Hex(), nil
}

// Open returns a reader over an archived transcript
func (ta *TranscriptArchive) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, common.NewValidationError("invalid transcript id")
	}

	stream, err := ta.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, common.NewNotFoundError("transcript", fileID)
		}
		return nil, common.NewStoreError("open transcript", err)
	}
	if err := stream.SetReadDeadline(deadline(ctx)); err != nil {
		stream.Close()
		return nil, common.NewStoreError("open transcript", err)
	}
	return stream, nil
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(30 * time.Second)
}
