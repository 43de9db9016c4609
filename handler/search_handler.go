package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/service"
	"github.com/tieubaoca/docqa/types"
)

const maxSearchLimit = 50

type SearchHandler struct {
	sessions *service.SessionService
}

func NewSearchHandler(sessions *service.SessionService) *SearchHandler {
	return &SearchHandler{
		sessions: sessions,
	}
}

// HandleSearch returns the chunks of a session closest to the query.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid request body: session_id and query are required"})
		return
	}
	if req.Limit > maxSearchLimit {
		req.Limit = maxSearchLimit
	}

	hits, err := h.sessions.Search(c.Request.Context(), req.SessionID, req.Query, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SearchResponse{SessionID: req.SessionID, Results: hits})
}
