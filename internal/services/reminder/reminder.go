// Package reminder содержит логику планировщика рассылок: выборку
// пользователей из хранилища и публикацию заданий на напоминания в RabbitMQ.
// Доставка выполняется отдельным сервисом, поэтому медленный Telegram
// не растягивает проход по базе.
package reminder

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

// SubscriptionRepository определяет выборки хранилища для рассылок.
type SubscriptionRepository interface {
	// FindUnpaidUsers возвращает пользователей без действующей подписки.
	FindUnpaidUsers(ctx context.Context) ([]*models.User, error)
	// ListUsers возвращает всех пользователей.
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Service реализует два прохода рассылки: ежедневное приглашение к оплате
// и еженедельную мотивационную рассылку всем пользователям.
type Service struct {
	repo SubscriptionRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SweepUnpaid находит пользователей без действующей подписки и публикует
// по заданию на каждого. Ошибка публикации одного задания логируется
// и не прерывает проход по остальным.
func (s *Service) SweepUnpaid(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting sweep for users without active subscription")
	users, err := s.repo.FindUnpaidUsers(ctx)
	if err != nil {
		s.log.Error("failed to find unpaid users", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no unpaid users found")
		return
	}
	s.log.Info("found unpaid users", slog.Int("count", len(users)))
	s.publish(channel, users, rabbitmq.RouteBuy)
}

// SweepWeekly публикует еженедельную рассылку всем пользователям
// независимо от состояния подписки.
func (s *Service) SweepWeekly(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting weekly broadcast sweep")
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.Error("failed to list users", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no users to broadcast to")
		return
	}
	s.log.Info("broadcasting to users", slog.Int("count", len(users)))
	s.publish(channel, users, rabbitmq.RouteWeekly)
}

func (s *Service) publish(channel *amqp.Channel, users []*models.User, route string) {
	for _, user := range users {
		job := models.ReminderJob{
			UserID:   user.UserID,
			Language: user.Lang(),
		}
		if err := rabbitmq.PublishMessage(channel, rabbitmq.Exchange, route, job); err != nil {
			s.log.Error("failed to publish reminder job", sl.UserID(user.UserID), sl.Err(err))
		}
	}
}
