package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tieubaoca/docqa/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoTranscriptStore archives conversation turns in a MongoDB collection.
type MongoTranscriptStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoTranscriptStore(ctx context.Context, uri, database, collection string) (*MongoTranscriptStore, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetBSONOptions(
			&options.BSONOptions{
				ObjectIDAsHexString: true,
			},
		))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoTranscriptStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Append stores turns with sequence numbers starting at offset.
func (s *MongoTranscriptStore) Append(ctx context.Context, sessionID string, offset int, turns []types.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(turns))
	for i, turn := range turns {
		docs = append(docs, TranscriptMessage{
			SessionID: sessionID,
			Seq:       offset + i,
			Role:      string(turn.Role),
			Content:   turn.Text,
			CreatedAt: now,
		})
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to archive turns for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *MongoTranscriptStore) List(ctx context.Context, sessionID string) ([]TranscriptMessage, error) {
	cursor, err := s.collection.Find(ctx,
		bson.D{{Key: "session_id", Value: sessionID}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript for session %s: %w", sessionID, err)
	}
	var messages []TranscriptMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode transcript for session %s: %w", sessionID, err)
	}
	return messages, nil
}

func (s *MongoTranscriptStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
