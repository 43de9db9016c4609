package handler

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

type CorsHandler struct {
	allowOrigins []string
}

// NewCorsHandler allows the given origins; "*" allows any origin.
func NewCorsHandler(allowOrigins []string) *CorsHandler {
	return &CorsHandler{allowOrigins: allowOrigins}
}

func (h *CorsHandler) CorsMiddleware(c *gin.Context) {
	origin := c.GetHeader("Origin")
	switch {
	case slices.Contains(h.allowOrigins, "*"):
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "" && slices.Contains(h.allowOrigins, origin):
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Add("Vary", "Origin")
	}
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
