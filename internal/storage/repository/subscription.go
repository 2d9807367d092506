package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

// ErrSubscriptionNotFound возвращается, когда запись подписки отсутствует.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// UpsertWaitingPay резервирует подписку в статусе WAITING_PAY. У пользователя
// не более одной записи, поэтому конфликт разрешается по user_id: повторная
// покупка перезаписывает идентификатор, план и почту, сбрасывая срок.
// Повторный вызов с теми же аргументами безопасен.
func (s *Storage) UpsertWaitingPay(ctx context.Context, subscriptionID string, userID int64, planID, email string, ttl time.Duration) error {
	const op = "storage.UpsertWaitingPay"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (subscription_id, user_id, plan_id, email, status, expire_at)
			  VALUES ($1, $2, $3, $4, 'WAITING_PAY', now() + $5::interval)
			  ON CONFLICT (user_id) DO UPDATE
			  SET subscription_id = EXCLUDED.subscription_id,
			      plan_id = EXCLUDED.plan_id,
			      email = EXCLUDED.email,
			      status = 'WAITING_PAY',
			      expire_at = EXCLUDED.expire_at,
			      updated_at = now()`
	interval := fmt.Sprintf("%d seconds", int64(ttl.Seconds()))
	if _, err := s.DB.ExecContext(ctx, query, subscriptionID, userID, planID, email, interval); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Activate переводит подписку в ACTIVE и устанавливает срок от текущего
// момента. Переход идемпотентен: повторное событие лишь заново продлевает
// срок и обновляет updated_at. Возвращает владельца и план записи.
func (s *Storage) Activate(ctx context.Context, subscriptionID string, extension time.Duration) (int64, string, error) {
	const op = "storage.Activate"
	select {
	case <-ctx.Done():
		return 0, "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'ACTIVE',
			      expire_at = now() + $2::interval,
			      updated_at = now()
			  WHERE subscription_id = $1
			  RETURNING user_id, plan_id`
	interval := fmt.Sprintf("%d seconds", int64(extension.Seconds()))
	var userID int64
	var planID string
	err := s.DB.QueryRowContext(ctx, query, subscriptionID, interval).Scan(&userID, &planID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}
	return userID, planID, nil
}

// FindBySubscriptionID возвращает подписку по идентификатору провайдера.
func (s *Storage) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	const op = "storage.FindBySubscriptionID"
	return s.findSubscription(ctx, op,
		`SELECT subscription_id, user_id, plan_id, email, status, expire_at, created_at, updated_at
		 FROM subscriptions WHERE subscription_id = $1`, subscriptionID)
}

// FindByUser возвращает подписку пользователя, если она есть.
func (s *Storage) FindByUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.FindByUser"
	return s.findSubscription(ctx, op,
		`SELECT subscription_id, user_id, plan_id, email, status, expire_at, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1`, userID)
}

func (s *Storage) findSubscription(ctx context.Context, op, query string, arg any) (*models.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var sub models.Subscription
	row := s.DB.QueryRowContext(ctx, query, arg)
	if err := row.Scan(&sub.SubscriptionID, &sub.UserID, &sub.PlanID, &sub.Email,
		&sub.Status, &sub.ExpireAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// DeleteByUser удаляет подписку пользователя; часть сброса профиля.
func (s *Storage) DeleteByUser(ctx context.Context, userID int64) error {
	const op = "storage.DeleteByUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsEntitled сообщает, есть ли у пользователя действующая подписка.
// Единственный авторитетный критерий доступа: ACTIVE с неистёкшим сроком,
// сравнение с часами базы на момент чтения.
func (s *Storage) IsEntitled(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.IsEntitled"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var entitled bool
	query := `SELECT EXISTS (
			      SELECT 1 FROM subscriptions
			      WHERE user_id = $1 AND status = 'ACTIVE' AND expire_at > now()
			  )`
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&entitled); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return entitled, nil
}
