package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// APIErrorResponse is the JSON error envelope returned to clients.
type APIErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into structured
// responses. Handlers call c.Error(err) and return.
func ErrorHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		respondError(c, logger, err)
	}
}

// ErrorResponder writes an error response immediately from a handler.
type ErrorResponder struct {
	logger *logging.Logger
}

// NewErrorResponder creates an ErrorResponder
func NewErrorResponder(logger *logging.Logger) *ErrorResponder {
	return &ErrorResponder{logger: logger}
}

// Respond writes the error as an API response and aborts the request.
func (r *ErrorResponder) Respond(c *gin.Context, err error) {
	respondError(c, r.logger, err)
	c.Abort()
}

func respondError(c *gin.Context, logger *logging.Logger, err error) {
	requestID := c.GetString(string(logging.RequestIDKey))

	if appErr, ok := apperrors.AsAppError(err); ok {
		if appErr.HTTPStatus >= 500 {
			logger.WithContext(c.Request.Context()).WithError(err).Error("Request error")
		} else {
			logger.WithContext(c.Request.Context()).WithError(err).Warn("Request error")
		}
		c.JSON(appErr.HTTPStatus, APIErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: requestID,
		})
		return
	}

	logger.WithContext(c.Request.Context()).WithError(err).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, APIErrorResponse{
		Code:      apperrors.CodeInternal,
		Message:   "an unexpected error occurred",
		RequestID: requestID,
	})
}
