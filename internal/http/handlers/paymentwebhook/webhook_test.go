package paymentwebhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/services/reconciler"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) HandlePaymentEvent(ctx context.Context, ev models.PaymentEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandler_ServeHTTP(t *testing.T) {
	finishedBody := []byte(`{"payment_id":4522625843,"payment_status":"finished","subscription_id":"sub-1"}`)

	tests := []struct {
		name       string
		body       []byte
		secret     string
		signature  string
		setupMocks func(s *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "finished event is acknowledged",
			body: finishedBody,
			setupMocks: func(s *ServiceMock) {
				s.On("HandlePaymentEvent", mock.Anything, mock.MatchedBy(func(ev models.PaymentEvent) bool {
					return ev.SubscriptionID == "sub-1" && ev.PaymentStatus == "finished"
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   "OK",
		},
		{
			name: "non-terminal event is acknowledged",
			body: []byte(`{"payment_status":"waiting","subscription_id":"sub-1"}`),
			setupMocks: func(s *ServiceMock) {
				s.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   "OK",
		},
		{
			name:       "broken JSON",
			body:       []byte(`{"payment_status": `),
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing subscription_id",
			body:       []byte(`{"payment_status":"finished"}`),
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown subscription is still acknowledged",
			body: []byte(`{"payment_status":"finished","subscription_id":"ghost"}`),
			setupMocks: func(s *ServiceMock) {
				s.On("HandlePaymentEvent", mock.Anything, mock.Anything).
					Return(reconciler.ErrUnknownSubscription).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   "OK",
		},
		{
			name: "storage failure returns 500 so the gateway retries",
			body: finishedBody,
			setupMocks: func(s *ServiceMock) {
				s.On("HandlePaymentEvent", mock.Anything, mock.Anything).
					Return(errors.New("connection refused")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:      "valid signature",
			body:      finishedBody,
			secret:    "topsecret",
			signature: sign("topsecret", finishedBody),
			setupMocks: func(s *ServiceMock) {
				s.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   "OK",
		},
		{
			name:       "invalid signature",
			body:       finishedBody,
			secret:     "topsecret",
			signature:  sign("wrong", finishedBody),
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing signature when secret is set",
			body:       finishedBody,
			secret:     "topsecret",
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setupMocks(service)

			handler := New(newNoopLogger(), service, tt.secret)

			req := httptest.NewRequest(http.MethodPost, "/nowpayments/ipn", bytes.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("x-nowpayments-signature", tt.signature)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			service.AssertExpectations(t)
		})
	}
}
