// Package funnel sends the quiz results and the promotional follow-ups.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/core/telegram/callbacks"
	"github.com/m3rciful/neuroquiz/core/telegram/format"
	"github.com/m3rciful/neuroquiz/core/telegram/keyboard"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// Callback keys owned by the funnel.
const (
	KeyShowResults = "show_results"
	KeySubscribed  = "subscribed"
)

// ErrNotFinished is returned when results are requested before the quiz ends.
var ErrNotFinished = errors.New("funnel: quiz not finished")

var errNoChannel = errors.New("funnel: no channel configured")

// Outcome of a subscription check.
type Outcome string

const (
	OutcomeSubscribed    Outcome = "subscribed"
	OutcomeNotSubscribed Outcome = "not_subscribed"
	OutcomeNotYours      Outcome = "not_yours"
	OutcomeCheckFailed   Outcome = "check_failed"
)

// Summarizer scores the current attempt.
type Summarizer interface {
	Summary(ctx context.Context, userID int64) (quiz.Summary, error)
}

// PhotoSender sends a stored image, reusing its cached file id.
type PhotoSender interface {
	Send(ctx context.Context, chatID int64, m model.Media, caption string, kb messenger.Keyboard) (messenger.Sent, error)
}

// Store is the persistence the funnel needs.
type Store interface {
	Progress(ctx context.Context, userID int64) (model.Progress, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	MediaByPath(ctx context.Context, path string) (model.Media, error)
	SetSubscribed(ctx context.Context, userID int64, subscribed bool) error
}

// Options configure links and images.
type Options struct {
	// PublicURL is the base of the tracked redirect links.
	PublicURL string
	// ChannelURL is opened by the subscribe button. Empty disables the subscription step.
	ChannelURL string
	Badges     content.Badges
}

// Funnel renders results and verifies channel subscriptions.
type Funnel struct {
	store   Store
	msg     messenger.Messenger
	photos  PhotoSender
	scores  Summarizer
	members MembershipChecker
	texts   content.Texts
	opts    Options
}

// New wires a Funnel.
func New(store Store, msg messenger.Messenger, photos PhotoSender, scores Summarizer, members MembershipChecker, texts content.Texts, opts Options) *Funnel {
	return &Funnel{
		store:   store,
		msg:     msg,
		photos:  photos,
		scores:  scores,
		members: members,
		texts:   texts,
		opts:    opts,
	}
}

// RedirectURL is the tracked link for link and telegramID under base.
func RedirectURL(base string, link storage.Link, telegramID int64) string {
	return fmt.Sprintf("%s/r/%s/%d", strings.TrimRight(base, "/"), link, telegramID)
}

// SubscribedData is the button data that asks to verify the subscription of telegramID.
func SubscribedData(telegramID int64) string {
	return callbacks.MustJoin(KeySubscribed, telegramID)
}

// QuizCompleted congratulates the user and invites an image prompt. The
// results button serves users who skip the generation.
func (f *Funnel) QuizCompleted(ctx context.Context, u model.User, chatID int64) error {
	sum, err := f.scores.Summary(ctx, u.ID)
	if err != nil {
		return err
	}
	kb := messenger.Keyboard{{keyboard.InlineBtn{Text: f.texts.ShowResults, Data: KeyShowResults}}}
	_, err = f.msg.SendText(ctx, chatID, fmt.Sprintf(f.texts.QuizCompleted, sum.Correct, sum.Total), kb)
	logger.Info(ctx, "funnel", "funnel.completed",
		slog.String("status", logger.Status(err)),
		slog.Int("attempt", sum.Attempt),
		slog.Int("score", sum.Correct),
	)
	return err
}

// RenderQuizSummary sends the badge, the bonus offer and the subscription prompt.
// It returns ErrNotFinished while the quiz is not completed.
func (f *Funnel) RenderQuizSummary(ctx context.Context, u model.User, chatID int64) error {
	p, err := f.store.Progress(ctx, u.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFinished
	}
	if err != nil {
		return err
	}
	if !p.State.Completed() {
		return ErrNotFinished
	}
	sum, err := f.scores.Summary(ctx, u.ID)
	if err != nil {
		return err
	}

	title := fmt.Sprintf(f.texts.ResultTitle, sum.Badge.Title)
	if err := f.sendBadge(ctx, chatID, sum.Badge, title); err != nil {
		return err
	}

	texter := RedirectURL(f.opts.PublicURL, storage.LinkTexter, u.TelegramID)
	details := fmt.Sprintf(f.texts.ResultDetails, sum.Score, format.Link(texter, f.texts.TexterLinkText))
	kb := messenger.Keyboard{{keyboard.InlineBtn{Text: f.texts.TexterButton, URL: texter}}}
	if _, err := f.msg.SendText(ctx, chatID, details, kb); err != nil {
		return err
	}

	if f.opts.ChannelURL != "" {
		kb = messenger.Keyboard{
			{keyboard.InlineBtn{Text: f.texts.SubscribeButton, URL: f.opts.ChannelURL}},
			{keyboard.InlineBtn{Text: f.texts.SubscribedButton, Data: SubscribedData(u.TelegramID)}},
		}
		if _, err := f.msg.SendText(ctx, chatID, f.texts.SubscribePrompt, kb); err != nil {
			return err
		}
	}

	logger.Info(ctx, "funnel", "funnel.summary",
		slog.Int("attempt", sum.Attempt),
		slog.Int("score", sum.Score),
		slog.String("badge", string(sum.Badge.Tier)),
	)
	return nil
}

func (f *Funnel) sendBadge(ctx context.Context, chatID int64, b quiz.Badge, caption string) error {
	path := f.badgePath(b.Tier)
	if path == "" || f.photos == nil {
		_, err := f.msg.SendText(ctx, chatID, caption, nil)
		return err
	}
	m, err := f.store.MediaByPath(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		m, err = model.Media{Pool: model.PoolResult, Path: path}, nil
	}
	if err != nil {
		return err
	}
	_, err = f.photos.Send(ctx, chatID, m, caption, nil)
	return err
}

func (f *Funnel) badgePath(t quiz.Tier) string {
	switch t {
	case quiz.TierNovice:
		return f.opts.Badges.Novice
	case quiz.TierConfident:
		return f.opts.Badges.Confident
	case quiz.TierAllSeeing:
		return f.opts.Badges.AllSeeing
	}
	return ""
}

// VerifySubscription checks that callerID joined the channel. Only the user the
// button was issued to may press it.
func (f *Funnel) VerifySubscription(ctx context.Context, callerID, targetID, chatID int64) (Outcome, error) {
	if callerID != targetID {
		return OutcomeNotYours, nil
	}
	u, err := f.store.UserByTelegramID(ctx, targetID)
	if err != nil {
		return "", fmt.Errorf("funnel: subscriber: %w", err)
	}

	member, err := false, errNoChannel
	if f.members != nil {
		member, err = f.members.IsMember(ctx, callerID)
	}
	if err != nil {
		logger.Warn(ctx, "funnel", "funnel.membership",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		_, sendErr := f.msg.SendText(ctx, chatID, f.texts.GenericError, nil)
		return OutcomeCheckFailed, sendErr
	}
	if !member {
		logger.Info(ctx, "funnel", "funnel.membership",
			slog.String("outcome", string(OutcomeNotSubscribed)),
		)
		_, err := f.msg.SendText(ctx, chatID, f.texts.NotSubscribed, nil)
		return OutcomeNotSubscribed, err
	}

	if err := f.store.SetSubscribed(ctx, u.ID, true); err != nil {
		return "", err
	}
	logger.Info(ctx, "funnel", "funnel.membership",
		slog.String("outcome", string(OutcomeSubscribed)),
	)
	holst := RedirectURL(f.opts.PublicURL, storage.LinkHolst, u.TelegramID)
	kb := messenger.Keyboard{{keyboard.InlineBtn{Text: f.texts.HolstButton, URL: holst}}}
	_, err = f.msg.SendText(ctx, chatID, f.texts.SubscribedBonus, kb)
	return OutcomeSubscribed, err
}

// Notice is the callback toast for a subscription outcome.
func (f *Funnel) Notice(o Outcome) string {
	switch o {
	case OutcomeSubscribed:
		return f.texts.SubscribedThanks
	case OutcomeNotYours:
		return f.texts.NotYourButton
	}
	return ""
}
