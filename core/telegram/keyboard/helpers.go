// Package keyboard builds Telegram inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes an inline button. Exactly one of Data or URL is expected.
type InlineBtn struct {
	Text string
	Data string
	URL  string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
// Raw Data is sent as-is, without telebot's unique envelope.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			r = append(r, tele.InlineButton{Text: btn.Text, Data: btn.Data, URL: btn.URL})
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Chunk splits a flat list of buttons into rows with up to n buttons per row.
func Chunk(buttons []InlineBtn, n int) [][]InlineBtn {
	if n <= 1 {
		n = 1
	}
	rows := make([][]InlineBtn, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}

// InlineButtonsNPerRow lays out buttons n per row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(Chunk(buttons, n)...)
}
