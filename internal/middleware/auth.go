package middleware

import (
	"net/http"
	"strings"

	"github.com/restory/server/internal/auth"
	"github.com/restory/server/internal/domain"
)

type contextKey string

// WithUser extracts the bearer token from the Authorization header,
// verifies it, and adds the authenticated user to the request context.
// This middleware is optional - it adds the user if present but doesn't
// require authentication.
func WithUser(tokens *auth.TokenManager, users domain.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := bearerToken(r)
			if rawToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Verify(rawToken)
			if err != nil {
				// Invalid token, continue without user
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithUser(r.Context(), &domain.AuthUser{
				ID:    user.ID,
				Email: user.Email,
				Name:  user.FirstName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the user is authenticated, returning 401 if not.
// Must be placed after WithUser in the middleware chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
// Returns empty string when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}

	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
