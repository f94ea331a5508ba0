package shop

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "shopbot/core/telegram/helpers"
	"shopbot/core/telegram/keyboard"
)

// EventFrom reduces a telebot update to the machine's event shape. For
// callbacks the message id is the prompt the button was attached to; for
// messages it is the user's own message.
func EventFrom(c tele.Context) Event {
	ev := Event{}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if cb := c.Callback(); cb != nil {
		ev.HasCallback = true
		ev.Payload = strings.TrimSpace(cb.Data)
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
		return ev
	}
	if msg := c.Message(); msg != nil {
		ev.MessageID = msg.ID
	}
	ev.Text = c.Text()
	ev.Start = strings.HasPrefix(ev.Text, "/start")
	return ev
}

// teleMessenger implements Messenger over the current update's context so
// outbound sends keep the middleware counters and async sender path.
type teleMessenger struct {
	c tele.Context
}

// NewMessenger adapts a telebot context to the Messenger interface.
func NewMessenger(c tele.Context) Messenger {
	return teleMessenger{c: c}
}

func markupFrom(buttons [][]Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, len(buttons))
	for i, row := range buttons {
		r := make([]keyboard.InlineBtn, len(row))
		for j, btn := range row {
			r[j] = keyboard.InlineBtn{Text: btn.Text, Data: btn.Data}
		}
		rows[i] = r
	}
	return keyboard.InlineRows(rows...)
}

func (m teleMessenger) SendText(_ context.Context, _ int64, text string, buttons [][]Button) error {
	return tghelpers.SendText(m.c, text, &tele.SendOptions{ReplyMarkup: markupFrom(buttons)})
}

func (m teleMessenger) SendPhoto(_ context.Context, _ int64, photoURL, caption string, buttons [][]Button) error {
	return tghelpers.SendPhoto(m.c, photoURL, caption, &tele.SendOptions{ReplyMarkup: markupFrom(buttons)})
}

func (m teleMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	return m.c.Bot().Delete(&tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	})
}

// Handler adapts the dispatcher to a telebot handler; it is registered for
// the /start command, free text, and callbacks alike.
func Handler(d *Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		return d.Dispatch(ctx, NewMessenger(c), EventFrom(c))
	}
}
