// Package bot собирает основной процесс: Telegram-фронтенд, движок сверки
// и HTTP-сервер IPN-уведомлений платёжного провайдера.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	tgbot "github.com/magabrotheeeer/crypto-signals-bot/internal/bot"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/cache"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/migrations"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/paymentgateway"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/services/reconciler"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/storage/repository"
)

// App связывает HTTP-сервер, фронтенд и общие зависимости процесса.
type App struct {
	server   *http.Server
	frontend *tgbot.Bot
	logger   *slog.Logger
	db       *repository.Storage
}

// New инициализирует зависимости приложения и собирает их вместе.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	gateway := paymentgateway.NewClient(cfg.PaymentGateway)

	// Отдельный транспорт без диспетчера: движок уведомляет об активации
	// напрямую, минуя цикл обработки апдейтов.
	transport, err := tgbot.NewTransport(cfg.Telegram, cfg.Plans, logger)
	if err != nil {
		return nil, err
	}

	engine := reconciler.New(db, gateway, transport, cacheRedis, cfg.Plans, logger)

	frontend, err := tgbot.New(cfg.Telegram, engine, db, cacheRedis, cfg.Plans, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, engine, cfg.PaymentGateway.IPNSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		frontend: frontend,
		logger:   logger,
		db:       db,
	}, nil
}

// Run запускает HTTP-сервер и long polling и ждёт отмены контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go func() {
		errCh <- a.frontend.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
