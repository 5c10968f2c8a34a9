package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/neuroquiz/core/telegram"
	"github.com/m3rciful/neuroquiz/core/telegram/callbacks"
)

// CallbackRoute returns a handler that routes callbacks through the registry.
// Handlers answer their callback themselves; the not-found fallback answers
// unknown ones.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		data := callbacks.Data(c.Callback())
		key, cbHandler, ok := reg.ResolveCallback(data)
		if !ok {
			return handleWithSummary(c, "callback.unknown", start, func() error {
				if fallback := reg.CallbackNotFound(); fallback != nil {
					return fallback(c)
				}
				return nil
			}, slog.String("reason", "not_found"))
		}

		return handleWithSummary(c, "callback."+normalizeHandlerName(key), start, func() error {
			return cbHandler(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  handler,
	}
}
