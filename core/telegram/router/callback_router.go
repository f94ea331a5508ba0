package router

import (
	"strings"
	"time"

	"shopbot/core/logger"
	tg "shopbot/core/telegram"
	"shopbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// ConversationCallbackRoute returns a handler that routes every callback
// update into the conversation handler. Payloads are opaque here: the
// conversation layer owns their meaning.
func ConversationCallbackRoute(conversation tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		// Acknowledge early so the button stops spinning even when the
		// transition takes a round-trip upstream.
		_ = c.Respond()

		extras := []slog.Attr{
			slog.String("payload", logger.SanitizeLimit(strings.TrimSpace(cb.Data), 128)),
		}
		if conversation == nil {
			logHandlerSummary(c, "conversation.callback", start, "skip", "ok", nil, extras...)
			return nil
		}
		return handleWithSummary(c, "conversation.callback", start, "", "", func() error {
			return conversation(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
