package paymentgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/config"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.PaymentGateway{
		APIURL:         serverURL,
		APIKey:         "test-api-key",
		AuthEmail:      "merchant@example.com",
		AuthPassword:   "secret",
		RequestTimeout: 5 * time.Second,
	})
}

func TestClient_ReserveSubscription(t *testing.T) {
	var authCalls int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))

		switch r.URL.Path {
		case "/auth":
			atomic.AddInt64(&authCalls, 1)
			var req authRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "merchant@example.com", req.Email)
			_ = json.NewEncoder(w).Encode(authResponse{Token: "jwt-token", ExpiresIn: 300})
		case "/subscriptions":
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
			assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
			var req createSubscriptionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "np-123", req.SubscriptionPlanID)
			assert.Equal(t, "trader@example.com", req.Email)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":[{"id":"sub-42"}]}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	id, err := client.ReserveSubscription(context.Background(), "trader@example.com", "np-123")
	require.NoError(t, err)
	assert.Equal(t, "sub-42", id)

	// Токен переиспользуется: второй вызов не аутентифицируется заново.
	_, err = client.ReserveSubscription(context.Background(), "trader@example.com", "np-123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&authCalls))
}

func TestClient_ReserveSubscription_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_ = json.NewEncoder(w).Encode(authResponse{Token: "jwt-token"})
		case "/subscriptions":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":[]}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.ReserveSubscription(context.Background(), "trader@example.com", "np-123")
	assert.Error(t, err)
}

func TestClient_FetchInvoiceLink(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantURL   string
		wantFound bool
	}{
		{
			name:      "invoice ready",
			response:  `{"data":[{"invoice_url":"https://nowpayments.io/payment/inv-1","status":"waiting"}]}`,
			wantURL:   "https://nowpayments.io/payment/inv-1",
			wantFound: true,
		},
		{
			name:      "invoice not generated yet",
			response:  `{"data":[]}`,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/auth":
					_ = json.NewEncoder(w).Encode(authResponse{Token: "jwt-token"})
				case "/invoices":
					assert.Equal(t, "sub-42", r.URL.Query().Get("subscription_id"))
					_, _ = w.Write([]byte(tt.response))
				}
			}))
			defer srv.Close()

			client := newTestClient(srv.URL)

			url, found, err := client.FetchInvoiceLink(context.Background(), "sub-42")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

func TestClient_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.ReserveSubscription(context.Background(), "trader@example.com", "np-123")
	assert.Error(t, err)

	_, _, err = client.FetchInvoiceLink(context.Background(), "sub-42")
	assert.Error(t, err)
}
