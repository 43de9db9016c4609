package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtraction      = errors.New("document extraction failed")
	ErrConfig          = errors.New("invalid chunking configuration")
	ErrEmptyInput      = errors.New("no usable chunks to index")
	ErrEmbedding       = errors.New("embedding failed")
	ErrGeneration      = errors.New("generation failed")
	ErrIndex           = errors.New("vector index failed")
	ErrNotReady        = errors.New("conversation not initialized")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidQuestion = errors.New("question must not be empty")
	ErrUpload          = errors.New("invalid upload")

	ErrTranscriptDisabled = errors.New("transcript archive is not enabled")
)

// ExtractionError reports a document that could not be opened or parsed.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// ConfigError reports chunking parameters that violate 0 <= overlap < size.
type ConfigError struct {
	Size    int
	Overlap int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunking configuration: size=%d overlap=%d (need size > 0 and 0 <= overlap < size)", e.Size, e.Overlap)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

type EmptyReason string

const (
	EmptyNoDocuments   EmptyReason = "no documents provided"
	EmptyAllUnreadable EmptyReason = "all documents unreadable"
	EmptyNoText        EmptyReason = "no extractable text"
)

// EmptyInputError is returned when an ingestion ends up with nothing to index.
type EmptyInputError struct {
	Reason   EmptyReason
	Failures []*ExtractionError
}

func (e *EmptyInputError) Error() string {
	if len(e.Failures) == 0 {
		return string(e.Reason)
	}
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Document)
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(names, ", "))
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// EmbeddingError wraps a failure of the embedding capability.
type EmbeddingError struct {
	Stage string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding (%s): %v", e.Stage, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// GenerationError wraps a failure of the language model.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// IndexError wraps a failure of the vector index backend.
type IndexError struct {
	Stage string
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index (%s): %v", e.Stage, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// IsRetriable reports whether a failed request may succeed when repeated
// without any action from the user.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrGeneration) || errors.Is(err, ErrIndex)
}

const MessageNotReady = "Please upload and process your PDF files first."

// UserMessage returns the text shown to a client for err.
func UserMessage(err error) string {
	var emptyErr *EmptyInputError
	switch {
	case errors.Is(err, ErrNotReady):
		return MessageNotReady
	case errors.As(err, &emptyErr):
		return emptyErr.Error()
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrInvalidQuestion), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUpload), errors.Is(err, ErrTranscriptDisabled):
		return err.Error()
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrIndex):
		return "Failed to index or search your documents, please try again."
	case errors.Is(err, ErrGeneration):
		return "Failed to generate an answer, please try again."
	default:
		return "Internal server error"
	}
}
