// Package health реализует проверку живости сервера webhook-ов.
package health

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/crypto-signals-bot/internal/http/response"
)

// New возвращает обработчик, отвечающий OK без обращения к зависимостям.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.OK())
	}
}
