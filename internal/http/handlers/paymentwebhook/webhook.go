// Package paymentwebhook обрабатывает IPN-уведомления платёжного провайдера.
// Обработчик обязан отвечать 200 на любое разобранное событие — включая
// неизвестную подписку и нетерминальные статусы — иначе провайдер будет
// повторять доставку. 400 возвращается только на неразбираемое тело.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/lib/sl"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/services/reconciler"
)

// signatureHeader — заголовок с HMAC-SHA512 подписью тела запроса.
const signatureHeader = "x-nowpayments-signature"

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ipn_events_total",
	Help: "Processed IPN callbacks by outcome.",
}, []string{"outcome"})

// Service определяет интерфейс движка сверки для обработчика.
type Service interface {
	HandlePaymentEvent(ctx context.Context, ev models.PaymentEvent) error
}

// Payload — сырое тело IPN-уведомления провайдера.
type Payload struct {
	PaymentID      json.Number `json:"payment_id"`
	PaymentStatus  string      `json:"payment_status" validate:"required"`
	SubscriptionID string      `json:"subscription_id" validate:"required"`
	OrderID        string      `json:"order_id"`
}

// Handler обрабатывает POST-запросы IPN.
type Handler struct {
	log       *slog.Logger
	service   Service
	ipnSecret string // пустой секрет отключает проверку подписи
	validate  *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, ipnSecret string) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		ipnSecret: ipnSecret,
		validate:  validator.New(),
	}
}

// verifySignature проверяет HMAC-SHA512 подпись тела запроса.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(h.ipnSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.paymentwebhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		eventsTotal.WithLabelValues("malformed").Inc()
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if h.ipnSecret != "" {
		signature := r.Header.Get(signatureHeader)
		if signature == "" || !h.verifySignature(body, signature) {
			log.Error("invalid or missing webhook signature")
			eventsTotal.WithLabelValues("bad_signature").Inc()
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		eventsTotal.WithLabelValues("malformed").Inc()
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		log.Error("webhook payload validation failed", sl.Err(err))
		eventsTotal.WithLabelValues("malformed").Inc()
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	ev := models.PaymentEvent{
		SubscriptionID: payload.SubscriptionID,
		PaymentStatus:  payload.PaymentStatus,
		RawPayload:     body,
	}
	if err := h.service.HandlePaymentEvent(r.Context(), ev); err != nil {
		if errors.Is(err, reconciler.ErrUnknownSubscription) {
			// Событие по незарезервированной подписке отбрасывается,
			// но подтверждается, чтобы провайдер не повторял доставку.
			log.Warn("discarding event for unknown subscription",
				slog.String("subscription_id", payload.SubscriptionID))
			eventsTotal.WithLabelValues("unknown").Inc()
			h.ack(w)
			return
		}
		log.Error("failed to process payment event", sl.Err(err))
		eventsTotal.WithLabelValues("error").Inc()
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed",
		slog.String("subscription_id", payload.SubscriptionID),
		slog.String("status", payload.PaymentStatus))
	eventsTotal.WithLabelValues("processed").Inc()
	h.ack(w)
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
