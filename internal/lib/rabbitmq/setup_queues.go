package rabbitmq

// Exchange — общий exchange для всех очередей напоминаний.
const Exchange = "reminders"

// Маршрутные ключи сообщений-напоминаний.
const (
	RouteBuy    = "buy"    // напоминание об оплате пользователям без подписки
	RouteWeekly = "weekly" // еженедельная мотивационная рассылка
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetReminderQueues возвращает очереди, которые объявляет планировщик
// и потребляет доставщик уведомлений.
func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "reminder.buy", RoutingKey: RouteBuy},
		{QueueName: "reminder.weekly", RoutingKey: RouteWeekly},
	}
}
