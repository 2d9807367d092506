package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/locale"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

// Данные callback-кнопок.
const (
	cbLangPrefix = "lang:"
	cbBuyPrefix  = "buy:"
	cbReset      = "action:reset"
)

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("English", cbLangPrefix+"en"),
			tgbotapi.NewInlineKeyboardButtonData("Русский", cbLangPrefix+"ru"),
		),
	)
}

func resetKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(locale.Message(lang, "reset_button"), cbReset),
		),
	)
}

// buyKeyboard строит по кнопке на каждый тариф каталога.
func buyKeyboard(lang string, plans []models.Plan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, plan := range plans {
		label := locale.Message(lang, "buy_button")
		if len(plans) > 1 {
			label = fmt.Sprintf("%s · %s ($%.2f)", label, plan.Key, plan.PriceUSD)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbBuyPrefix+plan.Key),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(locale.Message(lang, "signals_button")),
			tgbotapi.NewKeyboardButton(locale.Message(lang, "commands_button")),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
