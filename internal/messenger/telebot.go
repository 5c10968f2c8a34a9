package messenger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/core/telegram/keyboard"
)

// Telebot sends through a telebot bot. Messages use HTML parse mode.
type Telebot struct {
	bot *tele.Bot
}

// NewTelebot wraps bot.
func NewTelebot(bot *tele.Bot) *Telebot {
	return &Telebot{bot: bot}
}

func (t *Telebot) options(kb Keyboard) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(kb) > 0 {
		opts.ReplyMarkup = keyboard.InlineButtonsRows(kb...)
	}
	return opts
}

// SendText implements Messenger.
func (t *Telebot) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (Sent, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Sent{}, Classify("send_text", err)
	}
	msg, err := t.bot.Send(tele.ChatID(chatID), text, t.options(kb))
	t.trace(ctx, "send_text", chatID, start, err)
	if err != nil {
		return Sent{}, Classify("send_text", err)
	}
	return Sent{MessageID: msg.ID}, nil
}

// SendPhoto implements Messenger. Uploaded photos report their new file id.
func (t *Telebot) SendPhoto(ctx context.Context, chatID int64, p Photo, kb Keyboard) (Sent, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Sent{}, Classify("send_photo", err)
	}
	var file tele.File
	switch {
	case p.FileID != "":
		file = tele.File{FileID: p.FileID}
	case p.Path != "":
		file = tele.FromDisk(p.Path)
	case p.URL != "":
		file = tele.FromURL(p.URL)
	default:
		return Sent{}, &Error{Op: "send_photo", Reason: ReasonBadRequest, Err: errors.New("photo has no source")}
	}
	photo := &tele.Photo{File: file, Caption: p.Caption}
	msg, err := t.bot.Send(tele.ChatID(chatID), photo, t.options(kb))
	t.trace(ctx, "send_photo", chatID, start, err)
	if err != nil {
		return Sent{}, Classify("send_photo", err)
	}
	sent := Sent{MessageID: msg.ID}
	if msg.Photo != nil {
		sent.FileID = msg.Photo.FileID
	}
	return sent, nil
}

// SendAlbum implements Messenger for photos already known to Telegram.
func (t *Telebot) SendAlbum(ctx context.Context, chatID int64, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Classify("send_album", err)
	}
	album := make(tele.Album, 0, len(fileIDs))
	for _, id := range fileIDs {
		album = append(album, &tele.Photo{File: tele.File{FileID: id}})
	}
	_, err := t.bot.SendAlbum(tele.ChatID(chatID), album)
	t.trace(ctx, "send_album", chatID, start, err)
	return Classify("send_album", err)
}

// Delete implements Messenger.
func (t *Telebot) Delete(ctx context.Context, chatID int64, messageID int) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Classify("delete", err)
	}
	err := t.bot.Delete(tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
	t.trace(ctx, "delete", chatID, start, err)
	return Classify("delete", err)
}

// AnswerCallback implements Messenger. An empty text only clears the loading indicator.
func (t *Telebot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return Classify("answer_callback", err)
	}
	var resp []*tele.CallbackResponse
	if text != "" {
		resp = append(resp, &tele.CallbackResponse{Text: text})
	}
	err := t.bot.Respond(&tele.Callback{ID: callbackID}, resp...)
	return Classify("answer_callback", err)
}

func (t *Telebot) trace(ctx context.Context, op string, chatID int64, start time.Time, err error) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.TG, level, "send."+op,
		slog.String("status", logger.Status(err)),
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
}
