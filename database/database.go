package database

import (
	"context"
	"time"

	"github.com/tieubaoca/docqa/types"
)

// VectorIndex is a searchable set of embedded chunks. It is immutable once
// built and safe for concurrent Retrieve calls.
type VectorIndex interface {
	// Retrieve returns at most k chunks ordered by descending similarity.
	Retrieve(ctx context.Context, query []float32, k int) ([]types.ScoredChunk, error)
	Len() int
	Close(ctx context.Context) error
}

// IndexBackend turns embedded chunks into a VectorIndex.
type IndexBackend interface {
	Name() string
	NewIndex(ctx context.Context, chunks []types.Chunk, vectors [][]float32) (VectorIndex, error)
}

// TranscriptMessage is an archived conversation turn.
type TranscriptMessage struct {
	SessionID string    `bson:"session_id" json:"session_id"`
	Seq       int       `bson:"seq" json:"seq"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TranscriptStore archives conversation turns outside the process.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, offset int, turns []types.Turn) error
	List(ctx context.Context, sessionID string) ([]TranscriptMessage, error)
	Close(ctx context.Context) error
}
