package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/service"
	"github.com/tieubaoca/docqa/types"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) HandleCreate(c *gin.Context) {
	session := h.sessions.Create()
	c.JSON(http.StatusCreated, types.SessionResponse{SessionID: session.ID, Ready: false})
}

func (h *SessionHandler) HandleGet(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SessionResponse{SessionID: session.ID, Ready: session.Ready()})
}

func (h *SessionHandler) HandleHistory(c *gin.Context) {
	id := c.Param("id")
	turns, err := h.sessions.History(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.HistoryResponse{SessionID: id, Messages: turns})
}

// HandleTranscript returns the archived turns of a session.
func (h *SessionHandler) HandleTranscript(c *gin.Context) {
	id := c.Param("id")
	messages, err := h.sessions.Transcript(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	entries := make([]types.TranscriptEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, types.TranscriptEntry{
			Seq:       m.Seq,
			Role:      types.Role(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, types.TranscriptResponse{SessionID: id, Messages: entries})
}

func (h *SessionHandler) HandleDelete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
