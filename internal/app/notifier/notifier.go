// Package notifier содержит приложение-доставщик напоминаний из RabbitMQ.
package notifier

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	tgbot "github.com/magabrotheeeer/crypto-signals-bot/internal/bot"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/rabbitmq"
	notifierservice "github.com/magabrotheeeer/crypto-signals-bot/internal/services/notifier"
)

// App представляет приложение-доставщик.
type App struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	notifierService *notifierservice.Service
	logger          *slog.Logger
}

// New создает новый экземпляр приложения-доставщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetReminderQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport, err := tgbot.NewTransport(cfg.Telegram, cfg.Plans, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	notifierService := notifierservice.New(transport, logger)

	return &App{
		conn:            conn,
		ch:              ch,
		notifierService: notifierService,
		logger:          logger,
	}, nil
}

// Run запускает потребителей очередей и ждёт отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "reminder.buy", a.notifierService.HandleBuyReminder)
	if err != nil {
		a.logger.Error("failed to start reminder.buy consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, "reminder.weekly", a.notifierService.HandleWeekly)
	if err != nil {
		a.logger.Error("failed to start reminder.weekly consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notifier service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
