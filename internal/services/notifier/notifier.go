// Package notifier доставляет задания-напоминания из RabbitMQ пользователям
// Telegram. Доставка best-effort: заблокировавший бота или удалившийся
// пользователь логируется и не мешает остальным получателям.
package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/locale"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

// Transport определяет исходящий канал доставки сообщений пользователю.
type Transport interface {
	// Deliver отправляет простое текстовое сообщение.
	Deliver(userID int64, text string) error
	// DeliverBuyPrompt отправляет сообщение с кнопками оплаты тарифов.
	DeliverBuyPrompt(userID int64, lang, text string) error
}

// Service обрабатывает задания из очередей напоминаний.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport Transport, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleBuyReminder отправляет пользователю без подписки приглашение к оплате.
func (s *Service) HandleBuyReminder(body []byte) error {
	var job models.ReminderJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal reminder job", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	text := locale.Message(job.Language, "pay_prompt_not")
	if err := s.transport.DeliverBuyPrompt(job.UserID, job.Language, text); err != nil {
		// Доставка независима по получателям: ошибка логируется,
		// сообщение подтверждается, чтобы не зациклить очередь.
		s.log.Warn("failed to deliver buy reminder", sl.UserID(job.UserID), sl.Err(err))
		return nil
	}
	s.log.Info("buy reminder delivered", sl.UserID(job.UserID))
	return nil
}

// HandleWeekly отправляет еженедельную мотивационную рассылку.
func (s *Service) HandleWeekly(body []byte) error {
	var job models.ReminderJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal reminder job", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	if err := s.transport.Deliver(job.UserID, locale.Message(job.Language, "weekly_push")); err != nil {
		s.log.Warn("failed to deliver weekly broadcast", sl.UserID(job.UserID), sl.Err(err))
		return nil
	}
	s.log.Info("weekly broadcast delivered", sl.UserID(job.UserID))
	return nil
}
