package middleware

import (
	"net/http"
	"strings"

	"dcabot/pkg/crypto"
)

// Auth - middleware проверки токена доступа к API статуса
//
// Назначение:
// Сверяет Bearer-токен из заголовка Authorization с bcrypt-хешем
// из конфигурации. Токен в открытом виде нигде не хранится:
// в конфиге лежит только хеш, сравнение устойчиво к перебору по
// времени за счёт самого bcrypt.
//
// Поведение:
// - tokenHash пуст: аутентификация выключена, все запросы проходят
// - нет заголовка или не Bearer: 401 Unauthorized
// - токен не совпал с хешем: 401 Unauthorized
//
// Формат заголовка: Authorization: Bearer <token>
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			if !crypto.CheckPasswordMatch(token, tokenHash) {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
