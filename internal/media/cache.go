// Package media sends images stored on disk and remembers the file id Telegram
// assigns on the first upload, so later sends skip the upload.
package media

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/model"
)

// FileIDStore persists file ids with first-write-wins semantics.
type FileIDStore interface {
	SetMediaFileID(ctx context.Context, id int64, fileID string) (bool, error)
}

// Cache uploads each file at most once per process and shares the result.
type Cache struct {
	dir   string
	store FileIDStore
	msg   messenger.Messenger

	group singleflight.Group
	known sync.Map // path -> file id
}

// New returns a Cache reading files relative to dir.
func New(dir string, store FileIDStore, msg messenger.Messenger) *Cache {
	return &Cache{dir: dir, store: store, msg: msg}
}

type upload struct {
	fileID   string
	sent     messenger.Sent
	uploaded bool
}

// Send delivers m to chatID. Concurrent first sends of the same file wait for a
// single upload and then reuse its file id.
func (c *Cache) Send(ctx context.Context, chatID int64, m model.Media, caption string, kb messenger.Keyboard) (messenger.Sent, error) {
	if id := c.fileID(m); id != "" {
		return c.msg.SendPhoto(ctx, chatID, messenger.Photo{FileID: id, Caption: caption}, kb)
	}

	leader := false
	v, err, _ := c.group.Do(m.Path, func() (any, error) {
		leader = true
		if id := c.fileID(m); id != "" {
			return upload{fileID: id}, nil
		}
		sent, err := c.upload(ctx, chatID, m, caption, kb)
		return upload{fileID: sent.FileID, sent: sent, uploaded: true}, err
	})
	up, _ := v.(upload)
	switch {
	case leader && err != nil:
		return messenger.Sent{}, err
	case leader && up.uploaded:
		return up.sent, nil
	case up.fileID != "":
		return c.msg.SendPhoto(ctx, chatID, messenger.Photo{FileID: up.fileID, Caption: caption}, kb)
	default:
		// the shared upload failed for another chat
		return c.upload(ctx, chatID, m, caption, kb)
	}
}

// SendGroup delivers question pictures: one album when every file id is known,
// otherwise one photo per file so the missing ids get cached.
func (c *Cache) SendGroup(ctx context.Context, chatID int64, items []model.Media) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, m := range items {
		if id := c.fileID(m); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == len(items) && len(ids) > 1 {
		return c.msg.SendAlbum(ctx, chatID, ids)
	}
	for _, m := range items {
		if _, err := c.Send(ctx, chatID, m, "", nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) fileID(m model.Media) string {
	if m.Cached() {
		return *m.TelegramFileID
	}
	if v, ok := c.known.Load(m.Path); ok {
		return v.(string)
	}
	return ""
}

func (c *Cache) upload(ctx context.Context, chatID int64, m model.Media, caption string, kb messenger.Keyboard) (messenger.Sent, error) {
	sent, err := c.msg.SendPhoto(ctx, chatID, messenger.Photo{Path: filepath.Join(c.dir, m.Path), Caption: caption}, kb)
	if err != nil {
		return messenger.Sent{}, err
	}
	if sent.FileID == "" {
		return sent, nil
	}
	c.known.Store(m.Path, sent.FileID)
	won, err := c.store.SetMediaFileID(ctx, m.ID, sent.FileID)
	logger.LogEvent(ctx, logger.Component("media"), levelFor(err), "media.cached",
		slog.String("status", logger.Status(err)),
		slog.String("path", m.Path),
		slog.Bool("first_write", won),
		logger.Err(err),
	)
	return sent, nil
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
