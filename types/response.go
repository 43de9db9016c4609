package types

import "time"

type ErrorResponse struct {
	Detail    string `json:"detail"`
	Retriable bool   `json:"retriable"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	Ready     bool   `json:"ready"`
}

type ProcessResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	SessionID string            `json:"session_id"`
	Documents int               `json:"documents"`
	Chunks    int               `json:"chunks"`
	Failed    []DocumentFailure `json:"failed,omitempty"`
}

type HistoryResponse struct {
	SessionID string `json:"session_id"`
	Messages  []Turn `json:"messages"`
}

type TranscriptEntry struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type TranscriptResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []TranscriptEntry `json:"messages"`
}

type SearchResponse struct {
	SessionID string        `json:"session_id"`
	Results   []ScoredChunk `json:"results"`
}
