package dispatch

import "github.com/m3rciful/neuroquiz/internal/users"

// CommandEvent is a slash command with its optional payload.
type CommandEvent struct {
	UpdateID int
	User     users.Identity
	ChatID   int64
	Command  string
	Payload  string
}

// CallbackEvent is an inline button press.
type CallbackEvent struct {
	UpdateID int
	ID       string
	User     users.Identity
	ChatID   int64
	Data     string
}

// TextEvent is a plain text message.
type TextEvent struct {
	UpdateID int
	User     users.Identity
	ChatID   int64
	Text     string
}
