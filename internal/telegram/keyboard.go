package telegram

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton is a lightweight inline keyboard button definition.
// Exactly one of URL or WebAppURL should be set.
type InlineButton struct {
	Text      string
	URL       string // Opened in the browser.
	WebAppURL string // Opened as a mini-app inside Telegram.
}

// InlineKeyboardBuilder accumulates rows of buttons before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

// NewInlineKeyboard creates an empty builder.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a row of buttons. Empty rows are ignored.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build renders the inline markup.
func (b *InlineKeyboardBuilder) Build() *telebot.ReplyMarkup {
	inlineKeyboard := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inlineKeyboard[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			button := telebot.InlineButton{Text: btn.Text}
			if btn.WebAppURL != "" {
				button.WebApp = &telebot.WebApp{URL: btn.WebAppURL}
			} else {
				button.URL = btn.URL
			}
			inlineKeyboard[i][j] = button
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inlineKeyboard}
}

// WebAppKeyboard is a single button opening url as a mini-app.
func WebAppKeyboard(buttonText, url string) *telebot.ReplyMarkup {
	return NewInlineKeyboard().AddRow(InlineButton{Text: buttonText, WebAppURL: url}).Build()
}

// URLKeyboard is a single button linking to an external url.
func URLKeyboard(buttonText, url string) *telebot.ReplyMarkup {
	return NewInlineKeyboard().AddRow(InlineButton{Text: buttonText, URL: url}).Build()
}
