// Package scheduler содержит приложение планировщика рассылок-напоминаний.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/rabbitmq"
	reminderservice "github.com/magabrotheeeer/crypto-signals-bot/internal/services/reminder"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	reminderService *reminderservice.Service
	cron            *cron.Cron
	conn            *amqp.Connection
	ch              *amqp.Channel
	cfg             *config.Config
	logger          *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetReminderQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	reminderService := reminderservice.New(db, logger)

	return &App{
		reminderService: reminderService,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		conn:   conn,
		ch:     ch,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает расписания рассылок и ждёт отмены контекста.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.cron.AddFunc(a.cfg.BuySpec, func() {
		a.reminderService.SweepUnpaid(ctx, a.ch)
	}); err != nil {
		return fmt.Errorf("failed to schedule buy sweep: %w", err)
	}

	if _, err := a.cron.AddFunc(a.cfg.WeeklySpec, func() {
		a.reminderService.SweepWeekly(ctx, a.ch)
	}); err != nil {
		return fmt.Errorf("failed to schedule weekly sweep: %w", err)
	}

	a.cron.Start()
	a.logger.Info("reminder schedules registered",
		slog.String("buy", a.cfg.BuySpec),
		slog.String("weekly", a.cfg.WeeklySpec))

	<-ctx.Done()

	a.logger.Info("shutting down reminder scheduler")

	stopCtx := a.cron.Stop()
	<-stopCtx.Done()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
