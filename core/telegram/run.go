package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	"github.com/m3rciful/neuroquiz/core/httpserver"
	"github.com/m3rciful/neuroquiz/core/logger"
	tghelpers "github.com/m3rciful/neuroquiz/core/telegram/helpers"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// allowedUpdates limits deliveries to what the router handles.
var allowedUpdates = []string{"message", "callback_query"}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Bot      *tele.Bot
	Registry *Registry
	HTTP     *httpserver.Server

	Middlewares []Middleware
	Routes      []Route

	// DisableWebhookSetup skips setWebhook/deleteWebhook calls against the Bot API.
	DisableWebhookSetup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
	HTTP     *httpserver.Server
}

// NewBot builds a bot for cfg. In webhook mode handlers run synchronously inside
// the HTTP request. offline skips the getMe round trip.
func NewBot(cfg *coreconfig.Config, offline bool) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	webhook := strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook)
	settings := tele.Settings{
		Token:       cfg.Telegram.Token,
		Client:      BuildHTTPClient(),
		Synchronous: webhook,
		Offline:     offline,
		ParseMode:   tele.ModeHTML,
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "handler.error", logger.Err(err))
		},
	}
	if p := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		AllowedUpdates:         allowedUpdates,
	}); p != nil {
		settings.Poller = p
	}

	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// Install registers middlewares and then routes on bot. Middlewares must come
// first: telebot binds them to handlers at Handle time.
func Install(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
}

// RunTelegram wires routes into the bot and serves updates plus the HTTP surface
// until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config

	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	buildStart := time.Now()
	bot := opts.Bot
	if bot == nil {
		var err error
		if bot, err = NewBot(cfg, false); err != nil {
			return err
		}
	}
	srv := opts.HTTP
	if srv == nil {
		srv = httpserver.New(cfg.HTTP)
	}
	rt := Runtime{Bot: bot, Registry: reg, HTTP: srv}

	Install(bot, opts.Middlewares, opts.Routes)

	webhook := strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook)
	if webhook {
		srv.Engine.POST(cfg.HTTP.WebhookPath, WebhookHandler(bot, cfg.Telegram.WebhookSecret))
		publicURL := cfg.HTTP.URL(cfg.HTTP.WebhookPath)
		if !opts.DisableWebhookSetup {
			hook := &tele.Webhook{
				Endpoint:       &tele.WebhookEndpoint{PublicURL: publicURL},
				SecretToken:    cfg.Telegram.WebhookSecret,
				AllowedUpdates: allowedUpdates,
			}
			if err := bot.SetWebhook(hook); err != nil {
				return fmt.Errorf("telegram: set webhook: %w", err)
			}
		}
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", cfg.HTTP.Addr()),
			slog.String("public_url", publicURL),
			slog.Duration("duration", logger.Took(buildStart)),
		)
	} else {
		if !opts.DisableWebhookSetup {
			if err := bot.RemoveWebhook(); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					slog.String("mode", coreconfig.RunModeLongpoll),
					logger.Err(err),
				)
			}
		}
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.String("listen", cfg.HTTP.Addr()),
			slog.Duration("duration", logger.Took(buildStart)),
		)
	}

	if !opts.DisableWebhookSetup {
		InitBotCommands(bot, reg)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if !webhook {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				bot.Start()
				close(done)
			}()
			select {
			case <-gctx.Done():
				bot.Stop()
				<-done
			case <-done:
			}
			return nil
		})
	}
	runErr := g.Wait()

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}
