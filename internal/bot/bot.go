// Package bot реализует Telegram-фронтенд: линейный диалог регистрации,
// главное меню, покупку подписки и доступ к сигналам. Вся бизнес-логика
// подписок живёт в движке сверки; бот только принимает апдейты и
// доставляет сообщения.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/locale"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/services/reconciler"
)

var validate = validator.New()

func validateEmail(email string) error {
	return validate.Var(email, "required,email")
}

// Engine определяет операции движка сверки, нужные фронтенду.
type Engine interface {
	Purchase(ctx context.Context, userID int64, planKey string) (string, error)
	HandlePaymentEvent(ctx context.Context, ev models.PaymentEvent) error
	IsEntitled(ctx context.Context, userID int64) (bool, error)
	Reset(ctx context.Context, userID int64) error
}

// UserRepository определяет методы хранилища пользователей для фронтенда.
type UserRepository interface {
	SaveLanguage(ctx context.Context, userID int64, lang string) error
	UpdateProfile(ctx context.Context, userID int64, username, email string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// Cache описывает хранилище состояния диалога.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Bot объединяет Telegram API с движком и хранилищем.
type Bot struct {
	api         *tgbotapi.BotAPI
	engine      Engine
	repo        UserRepository
	cache       Cache
	plans       []models.Plan
	pollTimeout int
	log         *slog.Logger
}

// New создаёт бота и проверяет токен обращением к Telegram API.
func New(cfg config.Telegram, engine Engine, repo UserRepository, cache Cache, plans []models.Plan, log *slog.Logger) (*Bot, error) {
	const op = "bot.New"
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("bot authorized", slog.String("account", api.Self.UserName))

	return &Bot{
		api:         api,
		engine:      engine,
		repo:        repo,
		cache:       cache,
		plans:       plans,
		pollTimeout: cfg.PollTimeout,
		log:         log,
	}, nil
}

// NewTransport создаёт лёгкий экземпляр только для доставки сообщений —
// используется доставщиком уведомлений, которому не нужен диспетчер.
func NewTransport(cfg config.Telegram, plans []models.Plan, log *slog.Logger) (*Bot, error) {
	const op = "bot.NewTransport"
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Bot{api: api, plans: plans, log: log}, nil
}

// Deliver отправляет пользователю текстовое сообщение.
func (b *Bot) Deliver(userID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// DeliverBuyPrompt отправляет сообщение с кнопками оплаты тарифов.
func (b *Bot) DeliverBuyPrompt(userID int64, lang, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = buyKeyboard(lang, b.plans)
	_, err := b.api.Send(msg)
	return err
}

// Run запускает long polling и обрабатывает апдейты до отмены контекста.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			b.handleCallback(ctx, update.CallbackQuery)
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(userID)
		case "activate":
			b.handleActivate(ctx, userID, msg.CommandArguments())
		default:
			b.reply(userID, locale.Message(b.userLang(ctx, userID), "commands_list"))
		}
		return
	}

	// Кнопки главного меню совпадают для всех языков по ключу каталога.
	switch {
	case b.isMenuButton(msg.Text, "signals_button"):
		b.handleSignals(ctx, userID)
		return
	case b.isMenuButton(msg.Text, "commands_button"):
		b.reply(userID, locale.Message(b.userLang(ctx, userID), "commands_list"))
		return
	}

	if state, ok := b.getDialog(userID); ok {
		b.handleDialogStep(ctx, userID, state, strings.TrimSpace(msg.Text))
		return
	}

	b.reply(userID, locale.Message(b.userLang(ctx, userID), "need_register"))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbLangPrefix):
		b.handleLanguage(ctx, userID, strings.TrimPrefix(data, cbLangPrefix))
	case strings.HasPrefix(data, cbBuyPrefix):
		b.handleBuy(ctx, userID, strings.TrimPrefix(data, cbBuyPrefix))
	case data == cbReset:
		b.handleReset(ctx, userID)
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", sl.UserID(userID), sl.Err(err))
	}
}

func (b *Bot) handleStart(userID int64) {
	b.setDialog(userID, dialogState{Step: stepLanguage})
	msg := tgbotapi.NewMessage(userID, locale.Message(locale.DefaultLang, "choose_language"))
	msg.ReplyMarkup = languageKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send language prompt", sl.UserID(userID), sl.Err(err))
	}
}

func (b *Bot) handleLanguage(ctx context.Context, userID int64, lang string) {
	if !locale.Supported(lang) {
		return
	}
	// Первый контакт: запись пользователя создаётся вместе с языком.
	if err := b.repo.SaveLanguage(ctx, userID, lang); err != nil {
		b.log.Error("failed to save language", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
		return
	}
	b.setDialog(userID, dialogState{Step: stepUsername, Lang: lang})

	b.replyWithMarkup(userID, locale.Message(lang, "start_message"), resetKeyboard(lang))
	b.reply(userID, locale.Message(lang, "ask_username"))
}

func (b *Bot) handleDialogStep(ctx context.Context, userID int64, state dialogState, text string) {
	switch state.Step {
	case stepLanguage:
		// Язык выбирается кнопкой; любой текст переспрашивает выбор.
		b.handleStart(userID)
	case stepUsername:
		state.Username = text
		state.Step = stepEmail
		b.setDialog(userID, state)
		b.reply(userID, locale.Message(state.Lang, "ask_email"))
	case stepEmail:
		if err := validateEmail(text); err != nil {
			b.reply(userID, locale.Message(state.Lang, "ask_email"))
			return
		}
		if err := b.repo.UpdateProfile(ctx, userID, state.Username, text); err != nil {
			b.log.Error("failed to update profile", sl.UserID(userID), sl.Err(err))
			b.reply(userID, locale.Message(state.Lang, "apology"))
			return
		}
		b.clearDialog(userID)
		b.replyWithMarkup(userID,
			locale.Messagef(state.Lang, "registration_success", state.Username, text),
			mainMenuKeyboard(state.Lang))
	}
}

func (b *Bot) handleSignals(ctx context.Context, userID int64) {
	lang := b.userLang(ctx, userID)
	entitled, err := b.engine.IsEntitled(ctx, userID)
	if err != nil {
		b.log.Error("entitlement check failed", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
		return
	}
	if !entitled {
		b.replyWithMarkup(userID, locale.Message(lang, "pay_prompt"), buyKeyboard(lang, b.plans))
		return
	}
	b.reply(userID, locale.Message(lang, "signals_text"))
}

func (b *Bot) handleBuy(ctx context.Context, userID int64, planKey string) {
	lang := b.userLang(ctx, userID)
	payURL, err := b.engine.Purchase(ctx, userID, planKey)
	if err != nil {
		b.replyPurchaseError(userID, lang, err)
		return
	}
	b.reply(userID, locale.Messagef(lang, "invoice_message", payURL))
}

// replyPurchaseError переводит ошибки движка в короткие локализованные
// ответы; внутренние детали пользователю не показываются.
func (b *Bot) replyPurchaseError(userID int64, lang string, err error) {
	switch {
	case errors.Is(err, reconciler.ErrMissingProfile):
		b.reply(userID, locale.Message(lang, "need_register"))
	case errors.Is(err, reconciler.ErrUnknownPlan):
		b.reply(userID, locale.Message(lang, "unknown_plan"))
	case errors.Is(err, reconciler.ErrInvoiceNotReady):
		b.reply(userID, locale.Message(lang, "invoice_pending"))
	default:
		b.log.Error("purchase failed", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
	}
}

func (b *Bot) handleReset(ctx context.Context, userID int64) {
	lang := b.userLang(ctx, userID)
	if err := b.engine.Reset(ctx, userID); err != nil {
		b.log.Error("failed to reset user", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
		return
	}
	b.clearDialog(userID)
	b.reply(userID, locale.Message(lang, "reset_done"))
	b.handleStart(userID)
}

func (b *Bot) handleActivate(ctx context.Context, userID int64, args string) {
	lang := b.userLang(ctx, userID)
	admin, err := b.repo.IsAdmin(ctx, userID)
	if err != nil {
		b.log.Error("admin check failed", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
		return
	}
	if !admin {
		b.reply(userID, locale.Message(lang, "not_admin"))
		return
	}
	subscriptionID := strings.TrimSpace(args)
	if subscriptionID == "" {
		b.reply(userID, locale.Message(lang, "activate_usage"))
		return
	}
	ev := models.PaymentEvent{SubscriptionID: subscriptionID, PaymentStatus: "finished"}
	if err := b.engine.HandlePaymentEvent(ctx, ev); err != nil {
		b.log.Error("manual activation failed", sl.UserID(userID), sl.Err(err))
		b.reply(userID, locale.Message(lang, "apology"))
		return
	}
	b.reply(userID, locale.Message(lang, "activate_done"))
}

// userLang возвращает язык пользователя из базы с откатом на английский.
func (b *Bot) userLang(ctx context.Context, userID int64) string {
	user, err := b.repo.GetUser(ctx, userID)
	if err != nil {
		return locale.DefaultLang
	}
	return user.Lang()
}

func (b *Bot) isMenuButton(text, key string) bool {
	for _, lang := range []string{"en", "ru"} {
		if text == locale.Message(lang, key) {
			return true
		}
	}
	return false
}

func (b *Bot) reply(userID int64, text string) {
	if err := b.Deliver(userID, text); err != nil {
		b.log.Warn("failed to send message", sl.UserID(userID), sl.Err(err))
	}
}

func (b *Bot) replyWithMarkup(userID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", sl.UserID(userID), sl.Err(err))
	}
}
