package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/service"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowOrigins  []string
	MaxUploadSize int64
}

// SetupRouter wires the HTTP API on top of the session registry.
func SetupRouter(
	sessions *service.SessionService,
	fileService *service.FileService,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.MaxUploadSize > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadSize
	}

	corsHandler := NewCorsHandler(cfg.AllowOrigins)
	router.Use(corsHandler.CorsMiddleware)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	uploadHandler := NewUploadHandler(fileService, sessions, logger)
	chatHandler := NewChatHandler(sessions, service.NewWebSocketService(sessions, logger), logger)
	sessionHandler := NewSessionHandler(sessions)
	searchHandler := NewSearchHandler(sessions)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/process", uploadHandler.HandleProcess)
		apiV1.POST("/chat", chatHandler.HandleChat)
		apiV1.GET("/ws", chatHandler.HandleWebsocket)
		apiV1.POST("/search", searchHandler.HandleSearch)

		apiV1.POST("/sessions", sessionHandler.HandleCreate)
		apiV1.GET("/sessions/:id", sessionHandler.HandleGet)
		apiV1.GET("/sessions/:id/messages", sessionHandler.HandleHistory)
		apiV1.GET("/sessions/:id/transcript", sessionHandler.HandleTranscript)
		apiV1.DELETE("/sessions/:id", sessionHandler.HandleDelete)
	}
	return router
}
