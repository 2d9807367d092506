// Package reconciler содержит центральную машину состояний подписки.
// Сервис сводит два независимых потока событий — синхронные команды покупки
// из бота и асинхронные IPN-уведомления провайдера — в одну согласованную
// запись подписки на пользователя: NONE → WAITING_PAY → ACTIVE. Истечение
// не хранится отдельным статусом, а вычисляется по expire_at при чтении.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/locale"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/storage/repository"
)

// Ошибки уровня бизнес-логики. Внутренние детали в текст пользователю
// не попадают — бот переводит их в короткие локализованные ответы.
var (
	// ErrMissingProfile — покупка без сохранённой почты; пользователю
	// предлагается пройти регистрацию.
	ErrMissingProfile = errors.New("user profile has no email")
	// ErrGatewayUnavailable — провайдер недоступен или ответил ошибкой;
	// хранилище при этом не изменяется, пользователь может повторить.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrUnknownSubscription — событие ссылается на идентификатор,
	// который никогда не резервировался; событие отбрасывается.
	ErrUnknownSubscription = errors.New("unknown subscription")
	// ErrUnknownPlan — ключ плана отсутствует в каталоге.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrInvoiceNotReady — провайдер ещё не выставил счёт; резервирование
	// состоялось, ссылку можно запросить позже.
	ErrInvoiceNotReady = errors.New("invoice not generated yet")
)

// provisionalTTL — пессимистичный срок, записываемый при резервировании.
// Перезаписывается настоящим сроком плана при активации.
const provisionalTTL = 30 * 24 * time.Hour

// entitlementCacheTTL ограничивает жизнь кеша проверки доступа.
const entitlementCacheTTL = time.Minute

// SubscriptionRepository определяет методы хранилища, нужные движку.
type SubscriptionRepository interface {
	UpsertWaitingPay(ctx context.Context, subscriptionID string, userID int64, planID, email string, ttl time.Duration) error
	Activate(ctx context.Context, subscriptionID string, extension time.Duration) (int64, string, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	FindByUser(ctx context.Context, userID int64) (*models.Subscription, error)
	DeleteByUser(ctx context.Context, userID int64) error
	IsEntitled(ctx context.Context, userID int64) (bool, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// GatewayClient определяет исходящий контракт платёжного провайдера.
type GatewayClient interface {
	ReserveSubscription(ctx context.Context, email, gatewayPlanID string) (string, error)
	FetchInvoiceLink(ctx context.Context, subscriptionID string) (string, bool, error)
}

// Notifier доставляет сообщение пользователю. Ошибки доставки логируются
// и никогда не поднимаются к вызывающему коду движка.
type Notifier interface {
	Deliver(userID int64, text string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует машину состояний подписки.
type Service struct {
	repo     SubscriptionRepository
	gateway  GatewayClient
	notifier Notifier
	cache    Cache
	plans    map[string]models.Plan
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, gateway GatewayClient, notifier Notifier, cache Cache, plans []models.Plan, log *slog.Logger) *Service {
	catalog := make(map[string]models.Plan, len(plans))
	for _, plan := range plans {
		catalog[plan.Key] = plan
	}
	return &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		cache:    cache,
		plans:    catalog,
		log:      log,
	}
}

func entitlementKey(userID int64) string {
	return fmt.Sprintf("entitled:%d", userID)
}

// Purchase обрабатывает запрос на покупку: резервирует подписку у провайдера,
// фиксирует её в хранилище в статусе WAITING_PAY и возвращает ссылку на
// оплату. Порядок строгий: сначала все внешние вызовы, затем одна атомарная
// запись — сбой провайдера не оставляет в хранилище частичного состояния.
func (s *Service) Purchase(ctx context.Context, userID int64, planKey string) (string, error) {
	const op = "reconciler.Purchase"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrMissingProfile
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.Email == "" {
		return "", ErrMissingProfile
	}

	plan, ok := s.plans[planKey]
	if !ok {
		return "", ErrUnknownPlan
	}

	subscriptionID, err := s.gateway.ReserveSubscription(ctx, user.Email, plan.GatewayPlanID)
	if err != nil {
		log.Error("failed to reserve subscription", sl.Err(err))
		return "", ErrGatewayUnavailable
	}

	if err := s.repo.UpsertWaitingPay(ctx, subscriptionID, userID, plan.Key, user.Email, provisionalTTL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	// Повторная покупка поверх ACTIVE перезаписывает запись в WAITING_PAY.
	if err := s.cache.Invalidate(entitlementKey(userID)); err != nil {
		log.Warn("failed to invalidate entitlement cache", sl.Err(err))
	}
	log.Info("subscription reserved",
		slog.String("subscription_id", subscriptionID), slog.String("plan", plan.Key))

	payURL, found, err := s.gateway.FetchInvoiceLink(ctx, subscriptionID)
	if err != nil {
		log.Error("failed to fetch invoice link", sl.Err(err))
		return "", ErrGatewayUnavailable
	}
	if !found {
		return "", ErrInvoiceNotReady
	}
	return payURL, nil
}

// HandlePaymentEvent сверяет IPN-событие провайдера с хранилищем.
// Обработчик реентерабелен: повторное "finished" по тому же идентификатору
// лишь заново продлевает срок, приводя запись к тому же конечному состоянию.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev models.PaymentEvent) error {
	const op = "reconciler.HandlePaymentEvent"
	log := s.log.With(slog.String("op", op), slog.String("subscription_id", ev.SubscriptionID))

	if !ev.Finished() {
		// Неуспешные и промежуточные статусы запись не активируют;
		// она остаётся в WAITING_PAY до успешной оплаты.
		log.Info("ignoring non-terminal payment status", slog.String("status", ev.PaymentStatus))
		return nil
	}

	sub, err := s.repo.FindBySubscriptionID(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			// Записи по событию не создаются: резервирование обязано
			// предшествовать оплате.
			log.Warn("payment event for unknown subscription")
			return ErrUnknownSubscription
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	extension := provisionalTTL
	plan, ok := s.plans[sub.PlanID]
	if ok {
		extension = plan.Duration()
	} else {
		log.Warn("plan missing from catalog, using provisional duration", slog.String("plan", sub.PlanID))
	}

	userID, _, err := s.repo.Activate(ctx, ev.SubscriptionID, extension)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return ErrUnknownSubscription
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(entitlementKey(userID)); err != nil {
		log.Warn("failed to invalidate entitlement cache", sl.Err(err))
	}
	log.Info("subscription activated", sl.UserID(userID), slog.String("plan", sub.PlanID))

	s.notifyActivated(ctx, userID, plan)
	return nil
}

func (s *Service) notifyActivated(ctx context.Context, userID int64, plan models.Plan) {
	days := plan.DurationDays
	if days == 0 {
		days = int(provisionalTTL / (24 * time.Hour))
	}
	lang := locale.DefaultLang
	if user, err := s.repo.GetUser(ctx, userID); err == nil {
		lang = user.Lang()
	}
	if err := s.notifier.Deliver(userID, locale.Messagef(lang, "subscribe_success", days)); err != nil {
		s.log.Warn("failed to deliver activation notice", sl.UserID(userID), sl.Err(err))
	}
}

// IsEntitled сообщает, открыт ли пользователю платный контент.
// Чтение без побочных эффектов; результат недолго кешируется и
// сбрасывается при активации, покупке и сбросе профиля.
func (s *Service) IsEntitled(ctx context.Context, userID int64) (bool, error) {
	const op = "reconciler.IsEntitled"

	key := entitlementKey(userID)
	var cached bool
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		s.log.Warn("entitlement cache read failed", sl.Err(err))
	} else if found {
		return cached, nil
	}

	entitled, err := s.repo.IsEntitled(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(key, entitled, entitlementCacheTTL); err != nil {
		s.log.Warn("entitlement cache write failed", sl.Err(err))
	}
	return entitled, nil
}

// Reset полностью удаляет подписку и профиль пользователя,
// возвращая его в состояние NONE.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	const op = "reconciler.Reset"

	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(entitlementKey(userID)); err != nil {
		s.log.Warn("failed to invalidate entitlement cache", sl.Err(err))
	}
	s.log.Info("user profile reset", slog.String("op", op), sl.UserID(userID))
	return nil
}
