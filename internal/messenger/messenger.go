// Package messenger is the outbound side of the bot: sending texts, photos and
// albums, deleting messages and answering callback queries.
package messenger

import (
	"context"

	"github.com/m3rciful/neuroquiz/core/telegram/keyboard"
)

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]keyboard.InlineBtn

// Photo selects the photo source. FileID wins over Path, Path over URL.
type Photo struct {
	FileID  string
	Path    string
	URL     string
	Caption string
}

// Sent describes a delivered message.
type Sent struct {
	MessageID int
	// FileID is set for photos and lets callers cache uploads.
	FileID string
}

// Messenger sends messages on behalf of the bot. All errors are *Error.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (Sent, error)
	SendPhoto(ctx context.Context, chatID int64, photo Photo, kb Keyboard) (Sent, error)
	SendAlbum(ctx context.Context, chatID int64, fileIDs []string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
