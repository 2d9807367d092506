package bot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/http/handlers/paymentwebhook"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/http/mware"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/services/reconciler"
)

// RegisterRoutes регистрирует все маршруты сервера webhook-ов.
func RegisterRoutes(r chi.Router, logger *slog.Logger, engine *reconciler.Service, ipnSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	// Провайдер шлёт IPN пачками после подтверждения блоков.
	limiter := rate.NewLimiter(rate.Limit(20), 40)

	r.Group(func(r chi.Router) {
		r.Use(mware.RateLimitMiddleware(logger, limiter))
		r.Post("/nowpayments/ipn", paymentwebhook.New(logger, engine, ipnSecret).ServeHTTP)
	})

	r.Get("/health", health.New())
	r.Handle("/metrics", promhttp.Handler())
}
