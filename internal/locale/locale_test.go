package locale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{"known key in russian", "ru", "ask_email", catalogs["ru"]["ask_email"]},
		{"unknown language falls back to english", "de", "ask_email", catalogs["en"]["ask_email"]},
		{"empty language falls back to english", "", "ask_email", catalogs["en"]["ask_email"]},
		{"unknown key returns the key itself", "en", "no_such_key", "no_such_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.lang, tt.key))
		})
	}
}

func TestMessagef(t *testing.T) {
	got := Messagef("en", "subscribe_success", 30)
	assert.Contains(t, got, "30")
	assert.NotContains(t, got, "%d")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("en"))
	assert.True(t, Supported("ru"))
	assert.False(t, Supported("de"))
	assert.False(t, Supported(""))
}

// Каталоги обязаны быть зеркальными: недостающий ключ молча подменился бы
// английским текстом посреди русского диалога.
func TestCatalogsAreMirrored(t *testing.T) {
	for key := range catalogs["en"] {
		_, ok := catalogs["ru"][key]
		assert.True(t, ok, "key %q missing from ru catalog", key)
	}
	for key := range catalogs["ru"] {
		_, ok := catalogs["en"][key]
		assert.True(t, ok, "key %q missing from en catalog", key)
	}
}

// Плейсхолдеры в парных текстах должны совпадать по количеству и типу.
func TestPlaceholdersMatch(t *testing.T) {
	for key, enText := range catalogs["en"] {
		ruText := catalogs["ru"][key]
		assert.Equal(t,
			strings.Count(enText, "%"), strings.Count(ruText, "%"),
			"placeholder mismatch for key %q", key)
	}
}
