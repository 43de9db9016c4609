package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/service"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

type UploadHandler struct {
	fileService *service.FileService
	sessions    *service.SessionService
	logger      *zap.Logger
}

func NewUploadHandler(fileService *service.FileService, sessions *service.SessionService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		fileService: fileService,
		sessions:    sessions,
		logger:      logger,
	}
}

// HandleProcess ingests the uploaded PDFs into a session. A new session is
// created when the form carries no session_id.
func (h *UploadHandler) HandleProcess(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respondError(c, &types.EmptyInputError{Reason: types.EmptyNoDocuments})
		return
	}

	docs, err := h.fileService.ReadUploads(files)
	if err != nil {
		h.logger.Warn("rejected upload", zap.Error(err))
		respondError(c, err)
		return
	}

	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		sessionID = h.sessions.Create().ID
	}

	result, err := h.sessions.Ingest(c.Request.Context(), sessionID, docs)
	if err != nil {
		h.logger.Error("failed to process documents", zap.String("session_id", sessionID), zap.Error(err))
		respondError(c, err)
		return
	}

	failed := make([]types.DocumentFailure, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, types.DocumentFailure{Document: f.Document, Error: f.Err.Error()})
	}
	c.JSON(http.StatusOK, types.ProcessResponse{
		Status:    "success",
		Message:   "PDFs processed successfully",
		SessionID: sessionID,
		Documents: result.Documents,
		Chunks:    result.Chunks,
		Failed:    failed,
	})
}
