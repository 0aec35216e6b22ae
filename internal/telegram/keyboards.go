package telegram

import "github.com/go-telegram/bot/models"

const buyCallback = "buy"

// balanceKeyboard offers a top-up under the balance reply
func balanceKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "💳 Пополнить баланс", CallbackData: buyCallback},
			},
		},
	}
}
