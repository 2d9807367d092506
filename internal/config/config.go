// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	Telegram                `yaml:"telegram"`
	PaymentGateway          `yaml:"payment_gateway"`
	Reminder                `yaml:"reminder"`
	Plans                   []models.Plan `yaml:"plans" env-required:"true"`
}

// HTTPServer структура для настройки сервера webhook-ов
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8000"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
}

// Telegram структура для настройки бота
type Telegram struct {
	Token       string `yaml:"token" env:"TELEGRAM_TOKEN"`
	PollTimeout int    `yaml:"poll_timeout" env-default:"30"`
}

// PaymentGateway структура для настройки клиента платёжного провайдера
type PaymentGateway struct {
	APIURL         string        `yaml:"api_url" env-default:"https://api.nowpayments.io/v1"`
	APIKey         string        `yaml:"api_key" env:"NOWPAYMENTS_API_KEY"`
	AuthEmail      string        `yaml:"auth_email"`
	AuthPassword   string        `yaml:"auth_password" env:"NOWPAYMENTS_PASSWORD"`
	IPNSecret      string        `yaml:"ipn_secret" env:"NOWPAYMENTS_IPN_SECRET"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"10s"`
}

// Reminder структура с расписаниями рассылок
type Reminder struct {
	BuySpec    string `yaml:"buy_spec" env-default:"@daily"`
	WeeklySpec string `yaml:"weekly_spec" env-default:"@weekly"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	if err := cfg.validatePlans(); err != nil {
		log.Fatalf("invalid plan catalog: %s", err)
	}
	return &cfg
}

func (c *Config) validatePlans() error {
	validate := validator.New()
	seen := make(map[string]struct{}, len(c.Plans))
	for _, plan := range c.Plans {
		if err := validate.Struct(plan); err != nil {
			return fmt.Errorf("plan %q: %w", plan.Key, err)
		}
		if _, ok := seen[plan.Key]; ok {
			return fmt.Errorf("duplicate plan key %q", plan.Key)
		}
		seen[plan.Key] = struct{}{}
	}
	return nil
}

// Plan возвращает позицию каталога по ключу.
func (c *Config) Plan(key string) (models.Plan, bool) {
	for _, plan := range c.Plans {
		if plan.Key == key {
			return plan, true
		}
	}
	return models.Plan{}, false
}
