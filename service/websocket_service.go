package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

const (
	websocketReadLimit   = 512 * 1024
	websocketIdleTimeout = 60 * time.Second
)

// SessionAsker answers questions within a session.
type SessionAsker interface {
	Ask(ctx context.Context, id string, question string) (string, error)
}

// WebSocketService serves the chat of one session over a websocket.
type WebSocketService struct {
	sessions SessionAsker
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketService(sessions SessionAsker, logger *zap.Logger) *WebSocketService {
	return &WebSocketService{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleChat upgrades the request and answers chat messages for sessionID
// until the client goes away. The session must exist before the upgrade.
func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(websocketReadLimit)
	conn.SetReadDeadline(time.Now().Add(websocketIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(websocketIdleTimeout))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(websocketIdleTimeout))

		if err := conn.WriteJSON(s.handleMessage(ctx, sessionID, p)); err != nil {
			s.logger.Warn("websocket write error", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

func (s *WebSocketService) handleMessage(ctx context.Context, sessionID string, p []byte) types.WebSocketResponse {
	var req types.WebsocketRequest
	if err := json.Unmarshal(p, &req); err != nil {
		return errorResponse("invalid message", false)
	}

	switch req.Type {
	case types.TypeWebsocketPing:
		return types.WebSocketResponse{Type: types.TypeWebsocketPong}
	case types.TypeWebsocketChat:
		payloadBytes, err := json.Marshal(req.Payload)
		if err != nil {
			return errorResponse("invalid payload", false)
		}
		var payload types.WebSocketChatPayload
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return errorResponse("invalid payload", false)
		}
		answer, err := s.sessions.Ask(ctx, sessionID, payload.Question)
		if err != nil {
			s.logger.Error("failed to answer question", zap.String("session_id", sessionID), zap.Error(err))
			return errorResponse(types.UserMessage(err), types.IsRetriable(err))
		}
		return types.WebSocketResponse{
			Type:    types.TypeWebsocketChat,
			Payload: types.WebSocketChatResponse{Answer: answer},
		}
	default:
		return errorResponse("unknown message type: "+req.Type, false)
	}
}

func errorResponse(detail string, retriable bool) types.WebSocketResponse {
	return types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: types.ErrorResponse{Detail: detail, Retriable: retriable},
	}
}
