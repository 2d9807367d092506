// Package locale загружает локализованные тексты бота из встроенных
// JSON-каталогов. Поддерживаются английский и русский; при отсутствии
// ключа или языка используется английский каталог.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLang используется, пока пользователь не выбрал язык.
const DefaultLang = "en"

var catalogs = mustLoad()

func mustLoad() map[string]map[string]string {
	result := make(map[string]map[string]string)
	for _, lang := range []string{"en", "ru"} {
		raw, err := localeFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			panic(fmt.Sprintf("locale: missing catalog %s: %v", lang, err))
		}
		var messages map[string]string
		if err := json.Unmarshal(raw, &messages); err != nil {
			panic(fmt.Sprintf("locale: bad catalog %s: %v", lang, err))
		}
		result[lang] = messages
	}
	return result
}

// Message возвращает текст по ключу для указанного языка.
func Message(lang, key string) string {
	if messages, ok := catalogs[lang]; ok {
		if text, ok := messages[key]; ok {
			return text
		}
	}
	if text, ok := catalogs[DefaultLang][key]; ok {
		return text
	}
	return key
}

// Messagef возвращает текст по ключу, подставляя аргументы в плейсхолдеры %s.
func Messagef(lang, key string, args ...any) string {
	return fmt.Sprintf(Message(lang, key), args...)
}

// Supported сообщает, поддерживается ли язык.
func Supported(lang string) bool {
	_, ok := catalogs[lang]
	return ok
}
