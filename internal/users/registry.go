// Package users resolves Telegram identities to stored users.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/internal/model"
)

// maxSourceLen bounds the acquisition source taken from a /start payload.
const maxSourceLen = 64

// Store is the persistence the registry needs.
type Store interface {
	EnsureUser(ctx context.Context, u model.User) (model.User, bool, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	CreateProgress(ctx context.Context, userID int64, source string) (bool, error)
	Progress(ctx context.Context, userID int64) (model.Progress, error)
	SetUserStatus(ctx context.Context, telegramID int64, status model.UserStatus) (bool, error)
}

// Identity is the sender of an inbound event.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// Registry creates users on first contact and tracks their reachability.
type Registry struct {
	store Store
}

// NewRegistry returns a Registry over store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Register returns the user for id together with its progress, creating both on
// first contact. source is kept only when the progress is created.
func (r *Registry) Register(ctx context.Context, id Identity, source string) (model.User, model.Progress, bool, error) {
	if id.TelegramID == 0 {
		return model.User{}, model.Progress{}, false, fmt.Errorf("users: empty telegram id")
	}
	u, created, err := r.store.EnsureUser(ctx, model.User{
		TelegramID: id.TelegramID,
		Username:   id.Username,
		FirstName:  id.FirstName,
	})
	if err != nil {
		return model.User{}, model.Progress{}, false, err
	}
	source = NormalizeSource(source)
	if _, err := r.store.CreateProgress(ctx, u.ID, source); err != nil {
		return model.User{}, model.Progress{}, false, err
	}
	p, err := r.store.Progress(ctx, u.ID)
	if err != nil {
		return model.User{}, model.Progress{}, false, err
	}
	if created {
		logger.Info(ctx, "users", "user.created",
			slog.Int64("user_id", id.TelegramID),
			slog.String("source", p.AcquisitionSource),
		)
	}
	return u, p, created, nil
}

// Lookup returns the stored user for a Telegram id.
func (r *Registry) Lookup(ctx context.Context, telegramID int64) (model.User, error) {
	return r.store.UserByTelegramID(ctx, telegramID)
}

// MarkBlocked records that the user can no longer be messaged.
func (r *Registry) MarkBlocked(ctx context.Context, telegramID int64) error {
	changed, err := r.store.SetUserStatus(ctx, telegramID, model.UserBlocked)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	if err != nil || changed {
		logger.LogEvent(ctx, logger.Component("users"), level, "user.blocked",
			slog.String("status", logger.Status(err)),
			slog.Int64("user_id", telegramID),
			logger.Err(err),
		)
	}
	return err
}

// NormalizeSource trims a deep-link payload into an acquisition source.
func NormalizeSource(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxSourceLen {
		return s
	}
	return string([]rune(s)[:maxSourceLen])
}
