package middleware

import (
	"net/http"

	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/service"
)

const (
	// CartSessionCookie carries the anonymous cart session ID.
	CartSessionCookie = "restory_cart"

	// cartSessionMaxAge keeps carts around for 30 days.
	cartSessionMaxAge = 30 * 24 * 60 * 60
)

// WithCartSession ensures every request carries a cart session ID. A
// missing or empty cookie gets a fresh ID, set on the response so the
// client keeps it. The ID is placed in the request context for
// handlers.
func WithCartSession(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if cookie, err := r.Cookie(CartSessionCookie); err == nil {
				sessionID = cookie.Value
			}

			if sessionID == "" {
				newID, err := service.GenerateSessionID()
				if err != nil {
					respondInternalError(w, r, err)
					return
				}
				sessionID = newID

				http.SetCookie(w, &http.Cookie{
					Name:     CartSessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   cartSessionMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := domain.NewContextWithCartSession(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
