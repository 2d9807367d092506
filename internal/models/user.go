package models

import "time"

// User представляет пользователя бота. Запись создаётся при первом контакте
// (выбор языка) и дозаполняется на шагах регистрации. Удаляется только по
// явному сбросу со стороны пользователя.
type User struct {
	UserID    int64  // Telegram ID, выдаётся мессенджером
	Username  string // Отображаемое имя, заполняется на шаге регистрации
	Email     string // Почта для выставления счетов
	Language  string // Код языка интерфейса: en или ru
	CreatedAt time.Time
}

// Lang возвращает язык пользователя с откатом на английский,
// если язык ещё не выбран.
func (u *User) Lang() string {
	if u == nil || u.Language == "" {
		return "en"
	}
	return u.Language
}

// Plan — позиция каталога тарифов. Каталог неизменяемый, загружается из
// конфигурации и не хранится в базе.
type Plan struct {
	Key           string  `yaml:"key" validate:"required"`             // Ключ плана внутри бота, например monthly
	GatewayPlanID string  `yaml:"gateway_plan_id" validate:"required"` // Идентификатор плана у платёжного провайдера
	PriceUSD      float64 `yaml:"price_usd" validate:"gt=0"`           // Цена в долларах, для подписи кнопки
	DurationDays  int     `yaml:"duration_days" validate:"gt=0"`       // На сколько дней продлевает подписку
}

// Duration возвращает срок действия плана.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
