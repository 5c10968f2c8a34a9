package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/neuroquiz/core/logger"
	tghelpers "github.com/m3rciful/neuroquiz/core/telegram/helpers"
)

// SeenStore remembers keys for a while. FirstSeen reports true only for the
// first caller of a key within ttl.
type SeenStore interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DedupeOptions configures DedupeMiddleware.
type DedupeOptions struct {
	Store SeenStore
	TTL   time.Duration
	// Prefix namespaces keys when the store is shared between bots.
	Prefix string
}

// DedupeMiddleware drops updates whose update_id was already handled, which
// happens when Telegram redelivers a webhook after a timeout. Store errors let
// the update through.
func DedupeMiddleware(opts DedupeOptions) tele.MiddlewareFunc {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "tg:update:"
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Store == nil {
			return next
		}
		return func(c tele.Context) error {
			upd := c.Update()
			if upd.ID == 0 {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			first, err := opts.Store.FirstSeen(ctx, prefix+strconv.Itoa(upd.ID), ttl)
			if err != nil {
				logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "update.dedupe",
					slog.String("status", "fail"),
					logger.Err(err),
				)
				return next(c)
			}
			if !first {
				logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "update.dedupe",
					slog.String("status", "duplicate"),
				)
				return nil
			}
			return next(c)
		}
	}
}
