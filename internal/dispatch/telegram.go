package dispatch

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/neuroquiz/core/telegram"
	"github.com/m3rciful/neuroquiz/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/neuroquiz/core/telegram/helpers"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/users"
)

// Register binds the dispatcher to the bot registry: commands, callback keys,
// the unknown callback fallback and the text fallback.
func Register(reg *coretelegram.Registry, d *Dispatcher) error {
	reg.RegisterCommand("/start", coretelegram.Command{
		Description: "Начать квиз",
		Handler: func(c tele.Context) error {
			return d.Start(tghelpers.BuildContext(c), commandEvent(c, "/start"))
		},
	})
	reg.RegisterCommand("/quiz", coretelegram.Command{
		Description: "Пройти квиз заново",
		Handler: func(c tele.Context) error {
			return d.Quiz(tghelpers.BuildContext(c), commandEvent(c, "/quiz"))
		},
	})
	reg.RegisterCommand("/stats", coretelegram.Command{
		Description: "Статистика",
		AdminOnly:   true,
		Hidden:      true,
		Handler: func(c tele.Context) error {
			return d.Stats(tghelpers.BuildContext(c), commandEvent(c, "/stats"))
		},
	})

	err := errors.Join(
		reg.RegisterCallback(quiz.KeyQuestion, callbackHandler(d.Answer)),
		reg.RegisterCallback(funnel.KeySubscribed, callbackHandler(d.Subscribed)),
		reg.RegisterCallback(funnel.KeyShowResults, callbackHandler(d.ShowResults)),
	)
	reg.SetCallbackNotFound(callbackHandler(d.Unknown))
	reg.SetTextFallback(func(c tele.Context) error {
		return d.Text(tghelpers.BuildContext(c), textEvent(c))
	})
	return err
}

func callbackHandler(fn func(context.Context, CallbackEvent) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		return fn(tghelpers.BuildContext(c), callbackEvent(c))
	}
}

func identity(c tele.Context) users.Identity {
	s := c.Sender()
	if s == nil {
		return users.Identity{}
	}
	return users.Identity{TelegramID: s.ID, Username: s.Username, FirstName: s.FirstName}
}

func chatID(c tele.Context) int64 {
	id, _ := tghelpers.Identity(c)
	return id
}

func commandEvent(c tele.Context, command string) CommandEvent {
	payload := ""
	if m := c.Message(); m != nil {
		payload = strings.TrimSpace(m.Payload)
		if payload == "" {
			_, payload, _ = strings.Cut(strings.TrimSpace(m.Text), " ")
			payload = strings.TrimSpace(payload)
		}
	}
	return CommandEvent{
		UpdateID: c.Update().ID,
		User:     identity(c),
		ChatID:   chatID(c),
		Command:  command,
		Payload:  payload,
	}
}

func callbackEvent(c tele.Context) CallbackEvent {
	ev := CallbackEvent{
		UpdateID: c.Update().ID,
		User:     identity(c),
		ChatID:   chatID(c),
	}
	if cb := c.Callback(); cb != nil {
		ev.ID = cb.ID
		ev.Data = callbacks.Data(cb)
	}
	return ev
}

func textEvent(c tele.Context) TextEvent {
	return TextEvent{
		UpdateID: c.Update().ID,
		User:     identity(c),
		ChatID:   chatID(c),
		Text:     c.Text(),
	}
}
