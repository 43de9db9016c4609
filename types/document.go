package types

// Document is an uploaded file held in memory for one ingestion.
type Document struct {
	Name string
	Data []byte
}

// Chunk is a bounded-size slice of a document's extracted text.
type Chunk struct {
	Document string `json:"document"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// ScoredChunk is a retrieval hit, higher score means more similar.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// DocumentServiceConfig contains configuration options for text chunking
type DocumentServiceConfig struct {
	MaxChunkSize int // Maximum size for text chunks
	OverlapSize  int // Size of overlap between chunks
}

// DocumentFailure describes one document skipped during ingestion.
type DocumentFailure struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}
