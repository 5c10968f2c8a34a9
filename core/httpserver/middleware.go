package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/m3rciful/neuroquiz/core/logger"
)

// HeaderRequestID carries the request correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID attaches a correlation id to the request context and echoes it back.
// A well-formed inbound id is reused; otherwise a new uuid is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if _, err := uuid.Parse(rid); err != nil {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)

		ctx := logger.WithRID(c.Request.Context(), rid)
		ctx = logger.WithLogger(ctx, logger.HTTP)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger writes one access line per request once the handler chain returns.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelInfo
		status := "ok"
		switch {
		case code >= http.StatusInternalServerError:
			level, status = slog.LevelError, "fail"
		case code >= http.StatusBadRequest:
			level, status = slog.LevelWarn, "fail"
		}
		attrs := []slog.Attr{
			slog.String("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("http_code", code),
			slog.Duration("duration", logger.Took(start)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(logger.RedactTokens(errs.String()), 512)))
		}
		logger.LogEvent(c.Request.Context(), logger.HTTP, level, "http.request", attrs...)
	}
}

// Recovery converts handler panics into a 500 error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		logger.LogEvent(c.Request.Context(), logger.HTTP, slog.LevelError, "http.panic",
			slog.Any("err", rec),
			slog.String("stack", string(debug.Stack())),
		)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	})
}
