package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	"github.com/m3rciful/neuroquiz/core/telegram/middleware"
)

// MiddlewareOptions feeds optional collaborators into DefaultMiddlewares.
type MiddlewareOptions struct {
	// OnLimited answers a rate limited update.
	OnLimited tele.HandlerFunc
	// Seen de-duplicates redelivered updates when set.
	Seen    middleware.SeenStore
	SeenTTL time.Duration
}

// DefaultMiddlewares builds the shared middleware chain for bots:
// recover, logging context, update de-duplication and per-user rate limiting.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}

	if opts.Seen != nil {
		mws = append(mws, Middleware{
			Name: "dedupe",
			Use:  middleware.DedupeMiddleware(middleware.DedupeOptions{Store: opts.Seen, TTL: opts.SeenTTL}),
		})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	return mws
}
