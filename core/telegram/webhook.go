package telegram

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/neuroquiz/core/httpserver"
	"github.com/m3rciful/neuroquiz/core/logger"
)

// HeaderSecretToken is set by Telegram on webhook deliveries when a secret was registered.
const HeaderSecretToken = "X-Telegram-Bot-Api-Secret-Token"

// UpdateProcessor consumes a decoded update. *tele.Bot satisfies it.
type UpdateProcessor interface {
	ProcessUpdate(u tele.Update)
}

// WebhookHandler decodes Telegram updates and hands them to p. With a synchronous
// bot the response is written only after all handlers returned, so Telegram
// redelivers updates that were in flight during a crash.
func WebhookHandler(p UpdateProcessor, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			got := c.GetHeader(HeaderSecretToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				httpserver.RespondError(c, http.StatusForbidden, "forbidden", errors.New("invalid secret token"))
				return
			}
		}
		var upd tele.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			logger.LogEvent(c.Request.Context(), logger.TG, slog.LevelWarn, "webhook.decode",
				slog.String("status", "fail"),
				logger.Err(err),
			)
			httpserver.RespondError(c, http.StatusBadRequest, "bad_update", err)
			return
		}
		p.ProcessUpdate(upd)
		c.Status(http.StatusOK)
	}
}
