package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docqa/types"
)

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	var emptyErr *types.EmptyInputError
	switch {
	case errors.As(err, &emptyErr):
		if emptyErr.Reason == types.EmptyNoDocuments {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotReady),
		errors.Is(err, types.ErrInvalidQuestion),
		errors.Is(err, types.ErrUpload):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrSessionNotFound), errors.Is(err, types.ErrTranscriptDisabled):
		return http.StatusNotFound
	case errors.Is(err, types.ErrExtraction):
		return http.StatusUnprocessableEntity
	case types.IsRetriable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), types.ErrorResponse{
		Detail:    types.UserMessage(err),
		Retriable: types.IsRetriable(err),
	})
}
