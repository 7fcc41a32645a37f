package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
)

// classify maps a domain error onto an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, model.ErrAttemptClosed):
		return http.StatusConflict, response.ErrAttemptClosed
	case errors.Is(err, model.ErrAttemptOpen):
		return http.StatusConflict, response.ErrAttemptOpen
	case errors.Is(err, model.ErrAttemptInProgress):
		return http.StatusConflict, response.ErrAttemptInProgress
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, model.ErrStore):
		return http.StatusServiceUnavailable, response.ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the envelope for err. Validation errors carry their field.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		response.FailWithFields(c, status, code, map[string]string{ve.Field: ve.Reason})
		return
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
