package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

func TestStorage_UpsertWaitingPay(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 77, "trader", "trader@example.com", "en")

	ctx := context.Background()

	err := storage.UpsertWaitingPay(ctx, "sub-1", 77, "monthly", "trader@example.com", 30*24*time.Hour)
	require.NoError(t, err)

	sub, err := storage.FindByUser(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.SubscriptionID)
	assert.Equal(t, "monthly", sub.PlanID)
	assert.Equal(t, models.StatusWaitingPay, sub.Status)
	assert.True(t, sub.ExpireAt.After(time.Now()))

	// Повторный вызов с теми же аргументами не ломается
	err = storage.UpsertWaitingPay(ctx, "sub-1", 77, "monthly", "trader@example.com", 30*24*time.Hour)
	require.NoError(t, err)

	// Повторная покупка перезаписывает единственную запись пользователя
	err = storage.UpsertWaitingPay(ctx, "sub-2", 77, "quarterly", "new@example.com", 30*24*time.Hour)
	require.NoError(t, err)

	sub, err = storage.FindByUser(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "sub-2", sub.SubscriptionID)
	assert.Equal(t, "quarterly", sub.PlanID)
	assert.Equal(t, "new@example.com", sub.Email)
	assert.Equal(t, models.StatusWaitingPay, sub.Status)

	_, err = storage.FindBySubscriptionID(ctx, "sub-1")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestStorage_Activate(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 77, "trader", "trader@example.com", "en")

	ctx := context.Background()

	require.NoError(t, storage.UpsertWaitingPay(ctx, "sub-1", 77, "monthly", "trader@example.com", time.Hour))

	userID, planID, err := storage.Activate(ctx, "sub-1", 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(77), userID)
	assert.Equal(t, "monthly", planID)
	factory.VerifySubscriptionStatus(t, "sub-1", models.StatusActive)

	sub, err := storage.FindBySubscriptionID(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, sub.ExpireAt.After(time.Now().Add(29*24*time.Hour)))

	// Повторная активация приводит к тому же конечному состоянию
	userID, planID, err = storage.Activate(ctx, "sub-1", 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(77), userID)
	assert.Equal(t, "monthly", planID)
	factory.VerifySubscriptionStatus(t, "sub-1", models.StatusActive)

	_, _, err = storage.Activate(ctx, "ghost", 30*24*time.Hour)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestStorage_IsEntitled(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 1, "active", "a@example.com", "en")
	factory.CreateUser(t, 2, "waiting", "w@example.com", "en")
	factory.CreateUser(t, 3, "lapsed", "l@example.com", "en")
	factory.CreateUser(t, 4, "none", "n@example.com", "en")

	now := time.Now()
	factory.CreateSubscription(t, "sub-a", 1, "monthly", "a@example.com", models.StatusActive, now.Add(24*time.Hour))
	factory.CreateSubscription(t, "sub-w", 2, "monthly", "w@example.com", models.StatusWaitingPay, now.Add(24*time.Hour))
	// Просроченная запись остаётся ACTIVE: истечение вычисляется при чтении
	factory.CreateSubscription(t, "sub-l", 3, "monthly", "l@example.com", models.StatusActive, now.Add(-time.Hour))

	ctx := context.Background()

	tests := []struct {
		name   string
		userID int64
		want   bool
	}{
		{"active subscription", 1, true},
		{"waiting for payment", 2, false},
		{"lapsed subscription", 3, false},
		{"no subscription", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entitled, err := storage.IsEntitled(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entitled)
		})
	}
}

func TestStorage_FindUnpaidUsers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 1, "active", "a@example.com", "en")
	factory.CreateUser(t, 2, "waiting", "w@example.com", "ru")
	factory.CreateUser(t, 3, "lapsed", "l@example.com", "en")
	factory.CreateUser(t, 4, "none", "n@example.com", "ru")

	now := time.Now()
	factory.CreateSubscription(t, "sub-a", 1, "monthly", "a@example.com", models.StatusActive, now.Add(24*time.Hour))
	factory.CreateSubscription(t, "sub-w", 2, "monthly", "w@example.com", models.StatusWaitingPay, now.Add(24*time.Hour))
	factory.CreateSubscription(t, "sub-l", 3, "monthly", "l@example.com", models.StatusActive, now.Add(-time.Hour))

	users, err := storage.FindUnpaidUsers(context.Background())
	require.NoError(t, err)

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	assert.ElementsMatch(t, []int64{2, 3, 4}, ids)
}

func TestStorage_Users(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	// Первый контакт создаёт запись с одним лишь языком
	require.NoError(t, storage.SaveLanguage(ctx, 77, "ru"))

	user, err := storage.GetUser(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "ru", user.Language)
	assert.Empty(t, user.Email)

	// Повторный выбор языка не плодит записей
	require.NoError(t, storage.SaveLanguage(ctx, 77, "en"))
	user, err = storage.GetUser(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "en", user.Language)

	require.NoError(t, storage.UpdateProfile(ctx, 77, "trader", "trader@example.com"))
	user, err = storage.GetUser(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "trader", user.Username)
	assert.Equal(t, "trader@example.com", user.Email)

	assert.ErrorIs(t, storage.UpdateProfile(ctx, 404, "ghost", "g@example.com"), ErrUserNotFound)

	users, err := storage.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, storage.DeleteUser(ctx, 77))
	_, err = storage.GetUser(ctx, 77)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_DeleteByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 77, "trader", "trader@example.com", "en")
	factory.CreateSubscription(t, "sub-1", 77, "monthly", "trader@example.com",
		models.StatusActive, time.Now().Add(24*time.Hour))

	ctx := context.Background()

	require.NoError(t, storage.DeleteByUser(ctx, 77))
	_, err := storage.FindByUser(ctx, 77)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	// Удаление без записи не считается ошибкой
	require.NoError(t, storage.DeleteByUser(ctx, 77))
}

func TestStorage_IsAdmin(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateAdmin(t, 1, true)
	factory.CreateAdmin(t, 2, false)

	ctx := context.Background()

	admin, err := storage.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = storage.IsAdmin(ctx, 2)
	require.NoError(t, err)
	assert.False(t, admin)

	admin, err = storage.IsAdmin(ctx, 404)
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestStorage_ContextCancellation(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, storage.SaveLanguage(ctx, 77, "en"))
	_, err := storage.GetUser(ctx, 77)
	assert.Error(t, err)
	_, err = storage.FindByUser(ctx, 77)
	assert.Error(t, err)
}
