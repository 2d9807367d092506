package notifier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

type TransportMock struct{ mock.Mock }

func (m *TransportMock) Deliver(userID int64, text string) error {
	return m.Called(userID, text).Error(0)
}

func (m *TransportMock) DeliverBuyPrompt(userID int64, lang, text string) error {
	return m.Called(userID, lang, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func jobBody(t *testing.T, job models.ReminderJob) []byte {
	body, err := json.Marshal(job)
	assert.NoError(t, err)
	return body
}

func TestService_HandleBuyReminder(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		setupMocks func(tr *TransportMock)
		wantErr    bool
	}{
		{
			name: "delivers localized prompt with buy buttons",
			body: jobBody(t, models.ReminderJob{UserID: 77, Language: "ru"}),
			setupMocks: func(tr *TransportMock) {
				tr.On("DeliverBuyPrompt", int64(77), "ru", mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "delivery failure acks the message",
			body: jobBody(t, models.ReminderJob{UserID: 77, Language: "en"}),
			setupMocks: func(tr *TransportMock) {
				tr.On("DeliverBuyPrompt", int64(77), "en", mock.Anything).
					Return(errors.New("bot was blocked by the user")).Once()
			},
			// ошибка доставки не возвращается, чтобы не зациклить очередь
		},
		{
			name:       "broken payload is rejected",
			body:       []byte(`{"user_id":`),
			setupMocks: func(_ *TransportMock) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(TransportMock)
			tt.setupMocks(transport)

			service := New(transport, newNoopLogger())
			err := service.HandleBuyReminder(tt.body)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			transport.AssertExpectations(t)
		})
	}
}

func TestService_HandleWeekly(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		setupMocks func(tr *TransportMock)
		wantErr    bool
	}{
		{
			name: "delivers weekly broadcast",
			body: jobBody(t, models.ReminderJob{UserID: 5, Language: "en"}),
			setupMocks: func(tr *TransportMock) {
				tr.On("Deliver", int64(5), mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "delivery failure acks the message",
			body: jobBody(t, models.ReminderJob{UserID: 5, Language: "ru"}),
			setupMocks: func(tr *TransportMock) {
				tr.On("Deliver", int64(5), mock.Anything).
					Return(errors.New("chat not found")).Once()
			},
		},
		{
			name:       "broken payload is rejected",
			body:       []byte(`not json`),
			setupMocks: func(_ *TransportMock) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(TransportMock)
			tt.setupMocks(transport)

			service := New(transport, newNoopLogger())
			err := service.HandleWeekly(tt.body)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			transport.AssertExpectations(t)
		})
	}
}
