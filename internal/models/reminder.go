package models

// ReminderJob — задание на отправку напоминания одному пользователю.
// Публикуется планировщиком в RabbitMQ и потребляется доставщиком.
type ReminderJob struct {
	UserID   int64  `json:"user_id"`
	Language string `json:"language"`
}
