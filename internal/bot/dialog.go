package bot

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
)

// Шаги диалога регистрации. Линейная машина состояний на пользователя:
// выбор языка → имя → почта. Живёт отдельно от состояния подписки.
const (
	stepLanguage = "language"
	stepUsername = "username"
	stepEmail    = "email"
)

// dialogTTL — через сколько брошенный диалог сбрасывается сам собой;
// истечение ключа в redis и есть переход «таймаут».
const dialogTTL = 24 * time.Hour

// dialogState — текущее положение пользователя в диалоге регистрации
// и уже собранные черновые данные.
type dialogState struct {
	Step     string `json:"step"`
	Lang     string `json:"lang,omitempty"`
	Username string `json:"username,omitempty"`
}

func dialogKey(userID int64) string {
	return fmt.Sprintf("dialog:%d", userID)
}

func (b *Bot) getDialog(userID int64) (dialogState, bool) {
	var state dialogState
	found, err := b.cache.Get(dialogKey(userID), &state)
	if err != nil {
		b.log.Warn("failed to read dialog state", sl.UserID(userID), sl.Err(err))
		return dialogState{}, false
	}
	return state, found
}

func (b *Bot) setDialog(userID int64, state dialogState) {
	if err := b.cache.Set(dialogKey(userID), state, dialogTTL); err != nil {
		b.log.Warn("failed to save dialog state", sl.UserID(userID), sl.Err(err))
	}
}

func (b *Bot) clearDialog(userID int64) {
	if err := b.cache.Invalidate(dialogKey(userID)); err != nil {
		b.log.Warn("failed to clear dialog state", sl.UserID(userID), sl.Err(err))
	}
}
