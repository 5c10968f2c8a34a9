package keyboard

import "testing"

func TestInlineButtonsNPerRow(t *testing.T) {
	buttons := []InlineBtn{
		{Text: "A", Data: "question_1_answer_1"},
		{Text: "B", Data: "question_1_answer_2"},
		{Text: "C", Data: "question_1_answer_3"},
	}
	markup := InlineButtonsNPerRow(buttons, 2)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("layout = %+v", markup.InlineKeyboard)
	}
	if markup.InlineKeyboard[1][0].Data != "question_1_answer_3" {
		t.Fatalf("data = %q", markup.InlineKeyboard[1][0].Data)
	}
}

func TestInlineButtonsRowsURL(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "Канал", URL: "https://t.me/channel"}},
		nil,
		[]InlineBtn{{Text: "✅", Data: "subscribed_5"}},
	)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("empty rows must be skipped: %+v", markup.InlineKeyboard)
	}
	if markup.InlineKeyboard[0][0].URL != "https://t.me/channel" {
		t.Fatalf("url = %q", markup.InlineKeyboard[0][0].URL)
	}
}
