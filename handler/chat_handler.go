package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/service"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

type ChatHandler struct {
	sessions  *service.SessionService
	websocket *service.WebSocketService
	logger    *zap.Logger
}

func NewChatHandler(sessions *service.SessionService, websocket *service.WebSocketService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		websocket: websocket,
		logger:    logger,
	}
}

func (h *ChatHandler) HandleChat(c *gin.Context) {
	var chatRequest types.ChatRequest
	if err := c.ShouldBindJSON(&chatRequest); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid request body: session_id and question are required"})
		return
	}

	answer, err := h.sessions.Ask(c.Request.Context(), chatRequest.SessionID, chatRequest.Question)
	if err != nil {
		h.logger.Error("failed to answer question", zap.String("session_id", chatRequest.SessionID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ChatResponse{
		SessionID: chatRequest.SessionID,
		Answer:    answer,
	})
}

// HandleWebsocket serves the chat of an existing session over a websocket.
func (h *ChatHandler) HandleWebsocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		respondError(c, err)
		return
	}
	h.websocket.HandleChat(c.Writer, c.Request, sessionID)
}
