package paymentgateway

// Запрос на получение bearer-токена провайдера.
type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Ответ провайдера на аутентификацию. Срок действия токена объявляет сервер;
// если поле не пришло, используется консервативный срок по умолчанию.
type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// Запрос на резервирование подписки у провайдера.
type createSubscriptionRequest struct {
	SubscriptionPlanID string `json:"subscription_plan_id"`
	Email              string `json:"email"`
}

// Ответ на резервирование: провайдер возвращает список созданных подписок,
// нам нужна первая.
type createSubscriptionResponse struct {
	Result []struct {
		ID string `json:"id"`
	} `json:"result"`
}

// Ответ на запрос счетов подписки. Пустой список — нормальный исход:
// счёт ещё не сформирован.
type listInvoicesResponse struct {
	Data []Invoice `json:"data"`
}

// Invoice — счёт на оплату, выставленный провайдером.
type Invoice struct {
	InvoiceURL string `json:"invoice_url"`
	Status     string `json:"status,omitempty"`
}
