package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/restory/server/internal/auth"
	"github.com/restory/server/internal/domain"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithCartSession(t *testing.T) {
	t.Run("issues a cookie when none is present", func(t *testing.T) {
		var gotSession string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSession, _ = domain.CartSessionFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		rec := httptest.NewRecorder()
		WithCartSession(false)(next).ServeHTTP(rec, req)

		if gotSession == "" {
			t.Fatal("handler should see a cart session ID")
		}

		cookies := rec.Result().Cookies()
		var found *http.Cookie
		for _, c := range cookies {
			if c.Name == CartSessionCookie {
				found = c
			}
		}
		if found == nil {
			t.Fatal("response should set the cart session cookie")
		}
		if found.Value != gotSession {
			t.Errorf("cookie value = %q, context session = %q", found.Value, gotSession)
		}
		if !found.HttpOnly {
			t.Error("cart session cookie should be HttpOnly")
		}
	})

	t.Run("reuses an existing cookie", func(t *testing.T) {
		var gotSession string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSession, _ = domain.CartSessionFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.AddCookie(&http.Cookie{Name: CartSessionCookie, Value: "existing-session"})
		rec := httptest.NewRecorder()
		WithCartSession(false)(next).ServeHTTP(rec, req)

		if gotSession != "existing-session" {
			t.Errorf("context session = %q, want %q", gotSession, "existing-session")
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Error("no new cookie should be set when one exists")
		}
	})

	t.Run("secure flag is forwarded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		rec := httptest.NewRecorder()
		WithCartSession(true)(okHandler()).ServeHTTP(rec, req)

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || !cookies[0].Secure {
			t.Error("cookie should be marked Secure")
		}
	})
}

// stubUserService returns a fixed user for one known ID.
type stubUserService struct {
	user *domain.User
}

func (s *stubUserService) Register(ctx context.Context, firstName, lastName, email, password string) (*domain.User, error) {
	return nil, domain.ErrUserExists
}

func (s *stubUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	return nil, domain.ErrInvalidPassword
}

func (s *stubUserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func TestWithUser(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := &stubUserService{user: &domain.User{ID: "user-1", Email: "reader@example.com", FirstName: "Asha", LastName: "Verma"}}

	newRequest := func(authz string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		return req
	}

	t.Run("valid token attaches the user", func(t *testing.T) {
		token, err := tokens.Issue("user-1")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}

		var gotUser *domain.AuthUser
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, _ = domain.UserFromContext(r.Context())
		})

		rec := httptest.NewRecorder()
		WithUser(tokens, users)(next).ServeHTTP(rec, newRequest("Bearer "+token))

		if gotUser == nil {
			t.Fatal("handler should see the authenticated user")
		}
		if gotUser.ID != "user-1" || gotUser.Email != "reader@example.com" {
			t.Errorf("user = %+v, want user-1", gotUser)
		}
		if gotUser.Name != "Asha" {
			t.Errorf("display name = %q, want the first name %q", gotUser.Name, "Asha")
		}
	})

	t.Run("requests without a token pass through anonymously", func(t *testing.T) {
		var authenticated bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated = domain.IsAuthenticated(r.Context())
		})

		rec := httptest.NewRecorder()
		WithUser(tokens, users)(next).ServeHTTP(rec, newRequest(""))

		if authenticated {
			t.Error("request without credentials should be anonymous")
		}
	})

	t.Run("invalid token passes through anonymously", func(t *testing.T) {
		var authenticated bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated = domain.IsAuthenticated(r.Context())
		})

		rec := httptest.NewRecorder()
		WithUser(tokens, users)(next).ServeHTTP(rec, newRequest("Bearer garbage"))

		if authenticated {
			t.Error("invalid token should not authenticate")
		}
	})

	t.Run("unknown user passes through anonymously", func(t *testing.T) {
		token, err := tokens.Issue("deleted-user")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}

		var authenticated bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated = domain.IsAuthenticated(r.Context())
		})

		rec := httptest.NewRecorder()
		WithUser(tokens, users)(next).ServeHTTP(rec, newRequest("Bearer "+token))

		if authenticated {
			t.Error("token for a missing user should not authenticate")
		}
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("rejects anonymous requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()

		RequireAuth(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("passes authenticated requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		ctx := domain.NewContextWithUser(req.Context(), &domain.AuthUser{ID: "user-1"})
		rec := httptest.NewRecorder()

		RequireAuth(okHandler()).ServeHTTP(rec, req.WithContext(ctx))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to the burst size", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			RequestsPerSecond: 0.001,
			BurstSize:         3,
			CleanupInterval:   time.Minute,
		})
		defer rl.Stop()

		for i := 0; i < 3; i++ {
			if !rl.Allow("client-a") {
				t.Fatalf("request %d should be allowed within burst", i+1)
			}
		}
		if rl.Allow("client-a") {
			t.Error("request past the burst should be denied")
		}

		// Other clients have their own bucket
		if !rl.Allow("client-b") {
			t.Error("a different client should not be affected")
		}
	})

	t.Run("middleware returns 429 with Retry-After", func(t *testing.T) {
		handler := RateLimit(RateLimiterConfig{
			RequestsPerSecond: 0.001,
			BurstSize:         1,
			CleanupInterval:   time.Minute,
		})(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:4567"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first request status = %d, want %d", rec.Code, http.StatusOK)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("rate limited response should set Retry-After")
		}
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.7:4567",
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			xff:        "198.51.100.9",
			want:       "198.51.100.9",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			xff:        "198.51.100.9, 10.0.0.2, 10.0.0.1",
			want:       "198.51.100.9",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			xri:        "198.51.100.22",
			want:       "198.51.100.22",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/books", "/api/books"},
		{"/api/books/for-sale", "/api/books/for-sale"},
		{"/api/books/2c1b9f", "/api/books/:id"},
		{"/api/cart/items", "/api/cart/items"},
		{"/api/cart/items/2c1b9f", "/api/cart/items/:id"},
		{"/api/cart/items/2c1b9f/increase", "/api/cart/items/:id/increase"},
		{"/api/auth/login", "/api/auth/login"},
		{"/api/auth/me", "/api/auth/me"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
