// Package paymentgateway реализует клиент платёжного провайдера:
// получение bearer-токена, резервирование подписки и запрос счетов.
// Токен хранится в одном слоте и обновляется лениво; одновременные
// запросы разделяют одно обновление через singleflight, чтобы всплеск
// покупок не превращался в шторм аутентификаций.
package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
)

// refreshSkew — за сколько до объявленного истечения токен считается протухшим.
const refreshSkew = 30 * time.Second

// defaultTokenTTL применяется, когда провайдер не объявил срок токена.
const defaultTokenTTL = 5 * time.Minute

type Client struct {
	apiURL     string
	apiKey     string
	email      string
	password   string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   singleflight.Group
}

// NewClient создаёт новый клиент платёжного провайдера.
func NewClient(cfg config.PaymentGateway) *Client {
	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		email:      cfg.AuthEmail,
		password:   cfg.AuthPassword,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// bearerToken возвращает закешированный токен или обновляет его.
// Обновление разделяется между конкурентными вызовами.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	const op = "paymentgateway.bearerToken"

	c.mu.Lock()
	if c.token != "" && time.Until(c.expiresAt) > refreshSkew {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	result, err, _ := c.refresh.Do("token", func() (any, error) {
		req, err := c.newRequest(ctx, http.MethodPost, "/auth", authRequest{
			Email:    c.email,
			Password: c.password,
		})
		if err != nil {
			return nil, err
		}
		var auth authResponse
		if err := c.do(req, &auth); err != nil {
			return nil, err
		}
		ttl := defaultTokenTTL
		if auth.ExpiresIn > 0 {
			ttl = time.Duration(auth.ExpiresIn) * time.Second
		}
		c.mu.Lock()
		c.token = auth.Token
		c.expiresAt = time.Now().Add(ttl)
		c.mu.Unlock()
		return auth.Token, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return result.(string), nil
}

// ReserveSubscription регистрирует у провайдера ожидающую оплаты подписку
// и возвращает её идентификатор. Хранилище при этом не изменяется:
// запись появляется только после подтверждения идентификатора.
func (c *Client) ReserveSubscription(ctx context.Context, email, gatewayPlanID string) (string, error) {
	const op = "paymentgateway.ReserveSubscription"

	token, err := c.bearerToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions", createSubscriptionRequest{
		SubscriptionPlanID: gatewayPlanID,
		Email:              email,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	var created createSubscriptionResponse
	if err := c.do(req, &created); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(created.Result) == 0 || created.Result[0].ID == "" {
		return "", fmt.Errorf("%s: provider returned no subscription id", op)
	}
	return created.Result[0].ID, nil
}

// FetchInvoiceLink возвращает ссылку на оплату первого счёта подписки.
// Отсутствие счетов — не ошибка: провайдер мог ещё не выставить счёт,
// в этом случае found = false.
func (c *Client) FetchInvoiceLink(ctx context.Context, subscriptionID string) (string, bool, error) {
	const op = "paymentgateway.FetchInvoiceLink"

	token, err := c.bearerToken(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	path := "/invoices?subscription_id=" + url.QueryEscape(subscriptionID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var invoices listInvoicesResponse
	if err := c.do(req, &invoices); err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if len(invoices.Data) == 0 {
		return "", false, nil
	}
	return invoices.Data[0].InvoiceURL, true, nil
}
