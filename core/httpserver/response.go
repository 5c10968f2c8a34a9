package httpserver

import (
	"github.com/gin-gonic/gin"

	"github.com/m3rciful/neuroquiz/core/logger"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError under the "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError aborts the request with a JSON error envelope.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: logger.SanitizeLimit(logger.RedactTokens(msg), 256),
			Code:    code,
		},
	})
}
