package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a raw inline button. Data is delivered back verbatim
// as the callback payload, with no endpoint key prefixed.
type InlineBtn struct {
	Text string
	Data string
}

// InlineRows builds an inline keyboard from rows of InlineBtn.
func InlineRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}
