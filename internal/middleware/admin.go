// internal/middleware/admin.go
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/vedreal/airdrop_backend/internal/pkg/response"
)

// AdminOnly пускает только запросы с верным заголовком X-Admin-Key.
// Пустой ключ в конфиге закрывает админ-эндпоинты целиком.
func AdminOnly(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				response.RespondWithError(w, http.StatusForbidden, "Access denied")
				return
			}

			provided := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
				response.RespondWithError(w, http.StatusForbidden, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
