package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/neuroquiz/core/bootstrap"
	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	"github.com/m3rciful/neuroquiz/core/httpserver"
	"github.com/m3rciful/neuroquiz/core/logger"
	coretelegram "github.com/m3rciful/neuroquiz/core/telegram"
	"github.com/m3rciful/neuroquiz/core/telegram/middleware"
	"github.com/m3rciful/neuroquiz/core/telegram/router"
	"github.com/m3rciful/neuroquiz/core/telegram/sender"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/dedup"
	"github.com/m3rciful/neuroquiz/internal/dispatch"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/generation"
	"github.com/m3rciful/neuroquiz/internal/generation/genapi"
	"github.com/m3rciful/neuroquiz/internal/httpapi"
	"github.com/m3rciful/neuroquiz/internal/media"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/stats"
	"github.com/m3rciful/neuroquiz/internal/storage"
	"github.com/m3rciful/neuroquiz/internal/users"
	"github.com/m3rciful/neuroquiz/migrations"
)

// seenTTL covers Telegram's redelivery window for unacknowledged updates.
const seenTTL = 10 * time.Minute

// Overrides replaces outbound collaborators, mostly for tests. Zero values
// build the production ones from the config.
type Overrides struct {
	// Offline skips every Telegram API call made during startup.
	Offline    bool
	Messenger  messenger.Messenger
	Provider   generation.Provider
	Members    funnel.MembershipChecker
	LoggerInit func(*coreconfig.Config) error
}

type seenStore interface {
	middleware.SeenStore
	io.Closer
}

// App holds the wired bot.
type App struct {
	cfg *Config

	db         *sqlx.DB
	store      *storage.Store
	bot        *tele.Bot
	registry   *coretelegram.Registry
	http       *httpserver.Server
	seen       seenStore
	background *sender.Dispatcher
	offline    bool

	Dispatcher   *dispatch.Dispatcher
	Orchestrator *generation.Orchestrator
}

// Bootstrap builds the production App.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	return New(ctx, cfg, Overrides{})
}

// New prepares the database, loads the quiz content and wires every service.
func New(ctx context.Context, cfg *Config, ov Overrides) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	start := time.Now()

	file, err := content.Load(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules:    bootstrap.Modules{Seeders: []bootstrap.Seeder{content.Seeder{File: file}}},
		LoggerInit: ov.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		db:       res.DB,
		store:    storage.New(res.DB),
		registry: coretelegram.NewRegistry(),
		http:     httpserver.New(cfg.Config.HTTP),
		offline:  ov.Offline,
	}
	if err := a.wire(ctx, file, ov); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info(ctx, "app", "app.bootstrap",
		slog.String("db", cfg.Database.Target()),
		slog.Int("questions", len(file.Questions)),
		slog.Bool("redis", cfg.Redis.Addr != ""),
		slog.Duration("duration", logger.Took(start)),
	)
	return a, nil
}

func (a *App) wire(ctx context.Context, file *content.File, ov Overrides) error {
	cfg := a.cfg

	bot, err := coretelegram.NewBot(&cfg.Config, ov.Offline)
	if err != nil {
		return err
	}
	a.bot = bot

	msg := ov.Messenger
	if msg == nil {
		msg = messenger.NewTelebot(bot)
	}

	if cfg.Redis.Addr != "" {
		r, err := dedup.NewRedis(ctx, dedup.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.seen = r
	} else {
		a.seen = dedup.NewMemory()
	}

	members := ov.Members
	if members == nil && cfg.Funnel.ChannelID != "" {
		checker, err := a.channelBot(ov.Offline)
		if err != nil {
			return err
		}
		members = funnel.NewTelebotChecker(checker, cfg.Funnel.ChannelID,
			time.Duration(cfg.Funnel.MembershipTimeoutSeconds)*time.Second)
	}

	provider := ov.Provider
	if provider == nil {
		provider = genapi.New(genapi.Config{
			BaseURL:        cfg.Generation.BaseURL,
			APIKey:         cfg.Generation.APIKey,
			Network:        cfg.Generation.Network,
			Width:          cfg.Generation.Width,
			Height:         cfg.Generation.Height,
			TranslateInput: cfg.Generation.TranslateInput,
		}, coretelegram.NewHTTPClient(coretelegram.ClientOptions{
			Timeout: cfg.Generation.Timeout(),
			// a retried submit could start a second paid job
			Retries: -1,
		}))
	}

	a.background = sender.NewDispatcher(sender.Options{
		QueueSize:    256,
		Workers:      2,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
		MaxDuration:  15 * time.Second,
	})

	publicURL := cfg.Config.HTTP.PublicURL
	texts := file.Texts
	registry := users.NewRegistry(a.store)
	cache := media.New(cfg.Content.MediaDir, a.store, msg)
	fn := funnel.New(a.store, msg, cache, quiz.NewScorer(a.store, cfg.Quiz.ImageBonus), members, texts, funnel.Options{
		PublicURL:  publicURL,
		ChannelURL: cfg.Funnel.ChannelURL,
		Badges:     file.Badges,
	})
	a.Orchestrator = generation.New(a.store, msg, provider, fn, registry, texts, generation.Options{
		PublicURL:      publicURL,
		CallbackSecret: cfg.Generation.CallbackSecret,
		Background:     a.background,
	})
	a.Dispatcher = dispatch.New(dispatch.Deps{
		Users:     registry,
		Engine:    quiz.NewEngine(a.store, msg, cache, fn, texts, quiz.Options{AdvanceOnIncorrect: cfg.Quiz.AdvanceOnIncorrect}),
		Funnel:    fn,
		Generator: a.Orchestrator,
		Reporter:  stats.NewReporter(a.store),
		Messenger: msg,
		Texts:     texts,
	})
	if err := dispatch.Register(a.registry, a.Dispatcher); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	httpapi.New(a.Orchestrator, a.store, httpapi.Options{
		CallbackSecret: cfg.Generation.CallbackSecret,
		Links: map[storage.Link]string{
			storage.LinkTexter: cfg.Funnel.TexterURL,
			storage.LinkHolst:  cfg.Funnel.HolstURL,
		},
		HomeURL: cfg.Funnel.HomeURL,
	}).Mount(a.http.Engine)
	return nil
}

// channelBot returns the bot that may read the channel member list.
func (a *App) channelBot(offline bool) (*tele.Bot, error) {
	token := a.cfg.Funnel.ChannelBotToken
	if token == "" {
		return a.bot, nil
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Client:  coretelegram.BuildHTTPClient(),
		Offline: offline,
	})
	if err != nil {
		return nil, fmt.Errorf("app: channel bot: %w", err)
	}
	return bot, nil
}

// CoreConfig exposes the core section of the config.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg.CoreConfig()
}

// Registry returns the bot handler registry.
func (a *App) Registry() *coretelegram.Registry { return a.registry }

// HTTP returns the inbound HTTP server.
func (a *App) HTTP() *httpserver.Server { return a.http }

// Store returns the persistence layer.
func (a *App) Store() *storage.Store { return a.store }

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.bot == nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: bot is not initialized")
	}
	core := &a.cfg.Config
	routes := []coretelegram.Route{router.CallbackRoute(a.registry)}
	routes = append(routes, router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})...)
	routes = append(routes, router.TextRoutes(a.registry)...)

	return coretelegram.RunOptions{
		Config:   core,
		Bot:      a.bot,
		Registry: a.registry,
		HTTP:     a.http,
		Middlewares: coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{
			Seen:    a.seen,
			SeenTTL: seenTTL,
		}),
		Routes:              routes,
		DisableWebhookSetup: a.offline,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.background.Close()
			return nil
		},
	}, nil
}

// Close releases the queue, the de-duplication store and the database.
func (a *App) Close() error {
	if a.background != nil {
		a.background.Close()
	}
	var errs []error
	if a.seen != nil {
		errs = append(errs, a.seen.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
