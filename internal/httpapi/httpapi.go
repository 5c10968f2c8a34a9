// Package httpapi serves the public HTTP endpoints of the bot: provider
// callbacks and tracked redirect links.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/neuroquiz/core/httpserver"
	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/internal/generation"
	"github.com/m3rciful/neuroquiz/internal/generation/genapi"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// CallbackHandler processes provider callbacks.
type CallbackHandler interface {
	OnCallback(ctx context.Context, chatID int64, cb genapi.Callback) (generation.Result, error)
}

// ClickTracker records redirect clicks.
type ClickTracker interface {
	MarkLinkClicked(ctx context.Context, telegramID int64, link storage.Link) error
}

// Options configures the handlers.
type Options struct {
	// CallbackSecret must match the token query parameter when set.
	CallbackSecret string
	// Links maps a tracked link to its external target.
	Links map[storage.Link]string
	// HomeURL receives redirects that cannot be attributed. Empty means 404.
	HomeURL string
}

// Handlers groups the endpoints.
type Handlers struct {
	callbacks CallbackHandler
	clicks    ClickTracker
	opts      Options
}

// New returns Handlers.
func New(callbacks CallbackHandler, clicks ClickTracker, opts Options) *Handlers {
	return &Handlers{callbacks: callbacks, clicks: clicks, opts: opts}
}

// Mount registers the routes on r.
func (h *Handlers) Mount(r gin.IRouter) {
	r.POST("/generation-callback/:chat_id", h.GenerationCallback)
	r.GET("/r/:link/:telegram_id", h.Redirect)
}

// GenerationCallback accepts a provider result for the chat in the path.
func (h *Handlers) GenerationCallback(c *gin.Context) {
	if h.opts.CallbackSecret != "" {
		token := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.CallbackSecret)) != 1 {
			httpserver.RespondError(c, http.StatusForbidden, "forbidden", errors.New("invalid callback token"))
			return
		}
	}
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		httpserver.RespondError(c, http.StatusBadRequest, "bad_chat_id", errors.New("invalid chat id"))
		return
	}
	var cb genapi.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		httpserver.RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	ctx := logger.WithChat(c.Request.Context(), chatID)
	res, err := h.callbacks.OnCallback(ctx, chatID, cb)
	switch {
	case errors.Is(err, generation.ErrMissingRequestID):
		httpserver.RespondError(c, http.StatusBadRequest, "missing_request_id", err)
		return
	case err != nil:
		_ = c.Error(err)
		httpserver.RespondError(c, http.StatusBadGateway, "delivery_failed", errors.New("result delivery failed"))
		return
	case res == generation.ResultUnknown:
		httpserver.RespondError(c, http.StatusNotFound, "unknown_request", errors.New("unknown request id"))
		return
	}
	logger.Info(ctx, "generation", "generation.callback",
		slog.String("request_id", string(cb.RequestID)),
		slog.String("status", string(res)),
	)
	c.JSON(http.StatusOK, gin.H{"status": string(res)})
}

// Redirect records a click on a tracked link and sends the browser on.
func (h *Handlers) Redirect(c *gin.Context) {
	link := storage.Link(strings.ToLower(c.Param("link")))
	target := h.opts.Links[link]
	if target == "" {
		h.fallback(c, "unknown link")
		return
	}
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		h.fallback(c, "invalid telegram id")
		return
	}
	ctx := c.Request.Context()
	if err := h.clicks.MarkLinkClicked(ctx, telegramID, link); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.fallback(c, "unknown user")
			return
		}
		logger.Warn(ctx, "http", "redirect.track_failed",
			slog.String("link", string(link)),
			logger.Err(err),
		)
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handlers) fallback(c *gin.Context, reason string) {
	if h.opts.HomeURL != "" {
		c.Redirect(http.StatusFound, h.opts.HomeURL)
		return
	}
	httpserver.RespondError(c, http.StatusNotFound, "not_found", errors.New(reason))
}
