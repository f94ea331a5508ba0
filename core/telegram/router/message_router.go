package router

import (
	"time"

	tg "shopbot/core/telegram"
	"shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls routing of text and document updates.
type TextOptions struct {
	// Conversation receives any text that did not resolve to a command,
	// and any document. The conversation layer decides what a stray
	// message means for the current chat.
	Conversation tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Slash commands
// registered under aliases resolve through the registry first; everything
// else falls through to the conversation handler.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if opts.Conversation != nil {
			return handleWithSummary(c, "conversation.text", start, "", "", func() error {
				return opts.Conversation(c)
			})
		}

		logHandlerSummary(c, "conversation.text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.Conversation != nil {
			return handleWithSummary(c, "conversation.document", start, "", "", func() error {
				return opts.Conversation(c)
			})
		}
		logHandlerSummary(c, "conversation.document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
