package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase поднимает контейнер PostgreSQL и создаёт схему.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	postgresContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(wait.ForAll(
			wait.ForListeningPort(nat.Port("5432/tcp")),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			err = storage.DB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	_, err = storage.DB.Exec(`
		CREATE TABLE users (
			user_id    BIGINT PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			language   TEXT NOT NULL DEFAULT 'en',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE subscriptions (
			subscription_id TEXT PRIMARY KEY,
			user_id         BIGINT NOT NULL UNIQUE,
			plan_id         TEXT NOT NULL,
			email           TEXT NOT NULL,
			status          TEXT NOT NULL CHECK (status IN ('WAITING_PAY', 'ACTIVE', 'EXPIRED')),
			expire_at       TIMESTAMPTZ NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX idx_subscriptions_user_id ON subscriptions (user_id);

		CREATE TABLE admins (
			user_id       BIGINT PRIMARY KEY,
			is_authorized BOOLEAN NOT NULL DEFAULT true
		);
	`)
	require.NoError(t, err, "failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if postgresContainer != nil {
			_ = postgresContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, userID int64, username, email, language string) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, username, email, language)
		VALUES ($1, $2, $3, $4)`,
		userID, username, email, language)
	require.NoError(t, err)
}

// CreateSubscription создает тестовую запись подписки
func (f *TestDataFactory) CreateSubscription(t *testing.T, subscriptionID string, userID int64,
	planID, email, status string, expireAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO subscriptions
		(subscription_id, user_id, plan_id, email, status, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		subscriptionID, userID, planID, email, status, expireAt)
	require.NoError(t, err)
}

// CreateAdmin создает тестового администратора
func (f *TestDataFactory) CreateAdmin(t *testing.T, userID int64, authorized bool) {
	_, err := f.storage.DB.Exec(`INSERT INTO admins (user_id, is_authorized) VALUES ($1, $2)`,
		userID, authorized)
	require.NoError(t, err)
}

// VerifySubscriptionStatus проверяет статус записи подписки в БД
func (f *TestDataFactory) VerifySubscriptionStatus(t *testing.T, subscriptionID, expectedStatus string) {
	var status string
	err := f.storage.DB.QueryRow(`SELECT status FROM subscriptions WHERE subscription_id = $1`,
		subscriptionID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, status)
}
