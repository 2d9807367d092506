// Package models содержит доменные структуры: пользователь, тарифный план,
// подписка и событие платежа, приходящее от платёжного провайдера.
package models

import "time"

// Статусы подписки. Других значений в хранилище не бывает.
const (
	// StatusWaitingPay — подписка зарезервирована у провайдера, оплата не получена.
	StatusWaitingPay = "WAITING_PAY"
	// StatusActive — оплата получена, подписка действует до ExpireAt.
	StatusActive = "ACTIVE"
	// StatusExpired — зарезервировано для отчётности, фоновой перекладки статуса нет:
	// истечение всегда вычисляется по ExpireAt на момент чтения.
	StatusExpired = "EXPIRED"
)

// Subscription представляет запись подписки — центральную сущность,
// которую сверяет движок оплат. У пользователя не более одной записи,
// повторная покупка перезаписывает её через upsert.
type Subscription struct {
	SubscriptionID string    // Идентификатор, выданный платёжным провайдером
	UserID         int64     // Telegram ID владельца
	PlanID         string    // Ключ тарифного плана из каталога
	Email          string    // Почта, зафиксированная на момент резервирования
	Status         string    // WAITING_PAY | ACTIVE | EXPIRED
	ExpireAt       time.Time // Дата окончания, имеет смысл только при ACTIVE
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Entitling сообщает, даёт ли запись доступ к платному контенту в момент now.
// Единственный критерий — ACTIVE с неистёкшей датой; по одному лишь статусу
// судить нельзя, просроченные записи остаются ACTIVE до перезаписи.
func (s *Subscription) Entitling(now time.Time) bool {
	return s.Status == StatusActive && s.ExpireAt.After(now)
}

// PaymentEvent — нормализованное IPN-уведомление провайдера.
// Событие нигде не сохраняется: идемпотичность обеспечивается сверкой
// с хранилищем, а не дедупликацией событий.
type PaymentEvent struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	PaymentStatus  string `json:"payment_status" validate:"required"`
	RawPayload     []byte `json:"-"`
}

// Finished сообщает, что провайдер считает оплату завершённой.
func (e PaymentEvent) Finished() bool {
	return e.PaymentStatus == "finished" || e.PaymentStatus == "PAID"
}
