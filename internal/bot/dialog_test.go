package bot

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/locale"
	"github.com/magabrotheeeer/crypto-signals-bot/internal/models"
)

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestBot(cache Cache) *Bot {
	return &Bot{cache: cache, log: newNoopLogger()}
}

func TestDialogStateRoundTrip(t *testing.T) {
	cache := new(CacheMock)
	b := newTestBot(cache)

	state := dialogState{Step: stepEmail, Lang: "ru", Username: "trader"}
	cache.On("Set", "dialog:77", state, dialogTTL).Return(nil).Once()
	cache.On("Get", "dialog:77", mock.Anything).
		Run(func(args mock.Arguments) {
			*(args.Get(1).(*dialogState)) = state
		}).Return(true, nil).Once()
	cache.On("Invalidate", "dialog:77").Return(nil).Once()

	b.setDialog(77, state)

	got, found := b.getDialog(77)
	assert.True(t, found)
	assert.Equal(t, state, got)

	b.clearDialog(77)
	cache.AssertExpectations(t)
}

func TestGetDialog_CacheFailure(t *testing.T) {
	cache := new(CacheMock)
	b := newTestBot(cache)

	cache.On("Get", "dialog:77", mock.Anything).
		Return(false, assert.AnError).Once()

	// Сбой кеша эквивалентен отсутствию диалога
	_, found := b.getDialog(77)
	assert.False(t, found)
	cache.AssertExpectations(t)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("trader@example.com"))
	assert.Error(t, validateEmail("not-an-email"))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("@example.com"))
}

func TestIsMenuButton(t *testing.T) {
	b := newTestBot(new(CacheMock))

	assert.True(t, b.isMenuButton(locale.Message("en", "signals_button"), "signals_button"))
	assert.True(t, b.isMenuButton(locale.Message("ru", "signals_button"), "signals_button"))
	assert.False(t, b.isMenuButton("random text", "signals_button"))
}

func TestBuyKeyboard(t *testing.T) {
	plans := []models.Plan{
		{Key: "monthly", PriceUSD: 20, DurationDays: 30},
		{Key: "quarterly", PriceUSD: 50, DurationDays: 90},
	}

	kb := buyKeyboard("en", plans)
	assert.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, cbBuyPrefix+"monthly", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, cbBuyPrefix+"quarterly", *kb.InlineKeyboard[1][0].CallbackData)
	// При нескольких тарифах подпись различает их ключом и ценой
	assert.Contains(t, kb.InlineKeyboard[0][0].Text, "monthly")
	assert.Contains(t, kb.InlineKeyboard[1][0].Text, "$50.00")

	single := buyKeyboard("en", plans[:1])
	assert.Len(t, single.InlineKeyboard, 1)
	assert.NotContains(t, single.InlineKeyboard[0][0].Text, "monthly")
}

func TestLanguageKeyboard(t *testing.T) {
	kb := languageKeyboard()
	assert.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, cbLangPrefix+"en", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, cbLangPrefix+"ru", *kb.InlineKeyboard[0][1].CallbackData)
}
