package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

// Ingester builds an index from a batch of documents.
type Ingester interface {
	Ingest(ctx context.Context, docs []types.Document) (*IngestResult, error)
}

// Answerer answers a question against an index and a conversation state.
type Answerer interface {
	Answer(ctx context.Context, state types.ConversationState, index database.VectorIndex, question string) (string, types.ConversationState, error)
	Retrieve(ctx context.Context, index database.VectorIndex, query string, k int) ([]types.ScoredChunk, error)
}

// Session binds one conversation to the index it asks against. A session
// without an index is not ready for questions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	index database.VectorIndex
	state types.ConversationState
	// archived counts turns sent to the transcript store; it survives
	// history resets so archive sequence numbers never repeat.
	archived int
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil
}

// SessionService keeps the sessions of the process. Ask and Ingest on the
// same session are serialised; different sessions proceed in parallel.
type SessionService struct {
	ingester    Ingester
	answerer    Answerer
	transcripts database.TranscriptStore
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService accepts a nil TranscriptStore, in which case turns are
// kept in memory only.
func NewSessionService(ingester Ingester, answerer Answerer, transcripts database.TranscriptStore, logger *zap.Logger) *SessionService {
	return &SessionService{
		ingester:    ingester,
		answerer:    answerer,
		transcripts: transcripts,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

func (s *SessionService) Create() *Session {
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		state:     types.NewConversationState(),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	s.logger.Info("Session created", zap.String("session_id", session.ID))
	return session
}

func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return session, nil
}

// Ingest builds a new index for the session. On success the new index
// replaces the previous one, the history is reset and the previous index is
// closed. On failure the session is left as it was.
func (s *SessionService) Ingest(ctx context.Context, id string, docs []types.Document) (*IngestResult, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	result, err := s.ingester.Ingest(ctx, docs)
	if err != nil {
		return nil, err
	}
	previous := session.index
	session.index = result.Index
	session.state = types.NewConversationState()

	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			s.logger.Warn("failed to close replaced index", zap.String("session_id", id), zap.Error(err))
		}
	}
	return result, nil
}

// Ask answers a question in the session and records both turns.
func (s *SessionService) Ask(ctx context.Context, id string, question string) (string, error) {
	session, err := s.Get(id)
	if err != nil {
		return "", err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	previous := session.state.Len()
	answer, state, err := s.answerer.Answer(ctx, session.state, session.index, question)
	if err != nil {
		return "", err
	}
	session.state = state

	if s.transcripts != nil {
		turns := state.Turns()[previous:]
		offset := session.archived
		session.archived += len(turns)
		if err := s.transcripts.Append(ctx, id, offset, turns); err != nil {
			s.logger.Warn("failed to archive conversation turns", zap.String("session_id", id), zap.Error(err))
		}
	}
	return answer, nil
}

// Search returns the chunks of the session index closest to query without
// touching the conversation.
func (s *SessionService) Search(ctx context.Context, id string, query string, limit int) ([]types.ScoredChunk, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return s.answerer.Retrieve(ctx, session.index, query, limit)
}

func (s *SessionService) History(id string) ([]types.Turn, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.state.Turns(), nil
}

// Transcript returns every archived turn of the session, including turns
// from before the last ingestion.
func (s *SessionService) Transcript(ctx context.Context, id string) ([]database.TranscriptMessage, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if s.transcripts == nil {
		return nil, types.ErrTranscriptDisabled
	}
	return s.transcripts.List(ctx, id)
}

// Delete forgets the session and closes its index.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return types.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.index != nil {
		if err := session.index.Close(ctx); err != nil {
			return err
		}
		session.index = nil
	}
	s.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// Close releases every session index. It is called on shutdown.
func (s *SessionService) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for id, session := range sessions {
		session.mu.Lock()
		if session.index != nil {
			if err := session.index.Close(ctx); err != nil {
				s.logger.Warn("failed to close index", zap.String("session_id", id), zap.Error(err))
			}
			session.index = nil
		}
		session.mu.Unlock()
	}
}
