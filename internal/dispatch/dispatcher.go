// Package dispatch routes inbound Telegram events to the quiz, funnel and
// generation services and turns their failures into user facing replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/core/telegram/callbacks"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/generation"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/users"
)

// Users resolves senders and records unreachable ones.
type Users interface {
	Register(ctx context.Context, id users.Identity, source string) (model.User, model.Progress, bool, error)
	MarkBlocked(ctx context.Context, telegramID int64) error
}

// Engine runs the quiz.
type Engine interface {
	Begin(ctx context.Context, u model.User, chatID int64) error
	Restart(ctx context.Context, u model.User, chatID int64) error
	Answer(ctx context.Context, u model.User, chatID, questionID, answerID int64) (quiz.Outcome, error)
	Notice(o quiz.Outcome) string
}

// Funnel renders results and checks subscriptions.
type Funnel interface {
	RenderQuizSummary(ctx context.Context, u model.User, chatID int64) error
	VerifySubscription(ctx context.Context, callerID, targetID, chatID int64) (funnel.Outcome, error)
	Notice(o funnel.Outcome) string
}

// Generator submits image prompts.
type Generator interface {
	Submit(ctx context.Context, u model.User, chatID int64, prompt string) (generation.Pending, error)
}

// Reporter renders the admin statistics.
type Reporter interface {
	Report(ctx context.Context) (string, error)
}

// Deps are the services behind the dispatcher.
type Deps struct {
	Users     Users
	Engine    Engine
	Funnel    Funnel
	Generator Generator
	Reporter  Reporter
	Messenger messenger.Messenger
	Texts     content.Texts
}

// Dispatcher handles classified events.
type Dispatcher struct {
	users     Users
	engine    Engine
	funnel    Funnel
	generator Generator
	reporter  Reporter
	msg       messenger.Messenger
	texts     content.Texts
}

// New returns a Dispatcher over deps.
func New(deps Deps) *Dispatcher {
	return &Dispatcher{
		users:     deps.Users,
		engine:    deps.Engine,
		funnel:    deps.Funnel,
		generator: deps.Generator,
		reporter:  deps.Reporter,
		msg:       deps.Messenger,
		texts:     deps.Texts,
	}
}

// Start registers the sender with the deep-link payload as acquisition source
// and begins the quiz.
func (d *Dispatcher) Start(ctx context.Context, ev CommandEvent) error {
	u, _, _, err := d.users.Register(ctx, ev.User, ev.Payload)
	if err != nil {
		return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
	}
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, d.begin(ctx, u, ev.ChatID))
}

func (d *Dispatcher) begin(ctx context.Context, u model.User, chatID int64) error {
	if d.texts.Greeting != "" {
		if _, err := d.msg.SendText(ctx, chatID, d.texts.Greeting, nil); err != nil {
			return err
		}
	}
	return d.engine.Begin(ctx, u, chatID)
}

// Quiz restarts the quiz from the first question.
func (d *Dispatcher) Quiz(ctx context.Context, ev CommandEvent) error {
	u, _, _, err := d.users.Register(ctx, ev.User, "")
	if err == nil {
		err = d.engine.Restart(ctx, u, ev.ChatID)
	}
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

// Stats sends the statistics report.
func (d *Dispatcher) Stats(ctx context.Context, ev CommandEvent) error {
	report, err := d.reporter.Report(ctx)
	if err == nil {
		_, err = d.msg.SendText(ctx, ev.ChatID, report, nil)
	}
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

// Answer handles a question_{q}_answer_{a} press.
func (d *Dispatcher) Answer(ctx context.Context, ev CallbackEvent) error {
	toast, err := d.answer(ctx, ev)
	d.ack(ctx, ev, toast)
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

func (d *Dispatcher) answer(ctx context.Context, ev CallbackEvent) (string, error) {
	questionID, answerID, ok := quiz.ParseAnswerData(ev.Data)
	if !ok {
		d.ignore(ctx, ev, "malformed")
		return "", nil
	}
	u, _, _, err := d.users.Register(ctx, ev.User, "")
	if err != nil {
		return "", err
	}
	out, err := d.engine.Answer(ctx, u, ev.ChatID, questionID, answerID)
	return d.engine.Notice(out), err
}

// ShowResults handles the show_results button.
func (d *Dispatcher) ShowResults(ctx context.Context, ev CallbackEvent) error {
	toast, err := d.showResults(ctx, ev)
	d.ack(ctx, ev, toast)
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

func (d *Dispatcher) showResults(ctx context.Context, ev CallbackEvent) (string, error) {
	u, _, _, err := d.users.Register(ctx, ev.User, "")
	if err != nil {
		return "", err
	}
	err = d.funnel.RenderQuizSummary(ctx, u, ev.ChatID)
	if errors.Is(err, funnel.ErrNotFinished) {
		return d.texts.NotFinished, nil
	}
	return "", err
}

// Subscribed handles a subscribed_{telegramID} press.
func (d *Dispatcher) Subscribed(ctx context.Context, ev CallbackEvent) error {
	toast, err := d.subscribed(ctx, ev)
	d.ack(ctx, ev, toast)
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

func (d *Dispatcher) subscribed(ctx context.Context, ev CallbackEvent) (string, error) {
	tokens := callbacks.Split(ev.Data)
	if len(tokens) != 2 || tokens[0] != funnel.KeySubscribed {
		d.ignore(ctx, ev, "malformed")
		return "", nil
	}
	target, err := callbacks.Int64(tokens, 1)
	if err != nil || target <= 0 {
		d.ignore(ctx, ev, "malformed")
		return "", nil
	}
	if _, _, _, err := d.users.Register(ctx, ev.User, ""); err != nil {
		return "", err
	}
	out, err := d.funnel.VerifySubscription(ctx, ev.User.TelegramID, target, ev.ChatID)
	return d.funnel.Notice(out), err
}

// Unknown acknowledges a callback nobody handles.
func (d *Dispatcher) Unknown(ctx context.Context, ev CallbackEvent) error {
	d.ignore(ctx, ev, "unknown")
	d.ack(ctx, ev, "")
	return nil
}

// Text handles free text: a user who has not begun yet starts the quiz, a finished quiz turns
// the text into an image prompt, anything in between gets a reminder.
func (d *Dispatcher) Text(ctx context.Context, ev TextEvent) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return nil
	}
	u, p, created, err := d.users.Register(ctx, ev.User, "")
	if err != nil {
		return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
	}
	switch {
	case created, p.State == model.StateStart:
		err = d.begin(ctx, u, ev.ChatID)
	case p.State.Completed():
		_, err = d.generator.Submit(ctx, u, ev.ChatID, text)
	default:
		_, err = d.msg.SendText(ctx, ev.ChatID, d.texts.FinishQuizFirst, nil)
	}
	return d.finish(ctx, ev.ChatID, ev.User.TelegramID, err)
}

func (d *Dispatcher) ack(ctx context.Context, ev CallbackEvent, text string) {
	if ev.ID == "" {
		return
	}
	if err := d.msg.AnswerCallback(ctx, ev.ID, text); err != nil {
		logger.Debug(ctx, "dispatch", "callback.ack_failed", logger.Err(err))
	}
}

func (d *Dispatcher) ignore(ctx context.Context, ev CallbackEvent, reason string) {
	logger.Debug(ctx, "dispatch", "callback.ignored",
		slog.String("reason", reason),
		slog.String("data", logger.SanitizeLimit(ev.Data, 64)),
	)
}

// finish converts err into the reply the user sees. Unreachable users are
// marked blocked and the error is dropped; anything else gets an apology and
// is returned for the handler log.
func (d *Dispatcher) finish(ctx context.Context, chatID, telegramID int64, err error) error {
	if err == nil {
		return nil
	}
	if messenger.Unreachable(err) {
		d.markBlocked(ctx, telegramID)
		return nil
	}
	if chatID != 0 {
		if _, sendErr := d.msg.SendText(ctx, chatID, d.texts.GenericError, nil); messenger.Unreachable(sendErr) {
			d.markBlocked(ctx, telegramID)
		}
	}
	return fmt.Errorf("dispatch: %w", err)
}

func (d *Dispatcher) markBlocked(ctx context.Context, telegramID int64) {
	if telegramID == 0 {
		return
	}
	if err := d.users.MarkBlocked(ctx, telegramID); err != nil {
		logger.Warn(ctx, "dispatch", "user.block_failed", logger.Err(err))
	}
}
