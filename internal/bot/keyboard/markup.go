package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/relaygate/relay-bot/internal/command"
)

// ToMarkup converts a response keyboard into telebot inline markup. A nil or
// empty keyboard yields nil so callers can pass the result straight to Send.
func ToMarkup(kb command.Keyboard) *telebot.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}

	rows := make([][]telebot.InlineButton, len(kb))
	for i, row := range kb {
		rows[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			rows[i][j] = telebot.InlineButton{
				Text: btn.Text,
				Data: btn.Data,
			}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}
