// Package domain provides core business types and context helpers for
// the marketplace server.
//
// Context helpers centralize request-scoped data access so handlers and
// services read identity and session state through one consistent path.
package domain

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// authUserContextKey stores the authenticated user in context.
	authUserContextKey contextKey = iota

	// cartSessionContextKey stores the cart session ID in context.
	cartSessionContextKey

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// AuthUser represents the authenticated user stored in context.
// This is a minimal struct for context storage; the full user record
// can be fetched from the database when needed.
type AuthUser struct {
	ID    string
	Email string
	// Name is the display name, taken from the user's first name.
	Name string
}

// --- User Context Helpers ---

// NewContextWithUser returns a new context with the user attached.
func NewContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, authUserContextKey, user)
}

// UserFromContext retrieves the user from context.
// The second return value reports whether a user is present.
func UserFromContext(ctx context.Context) (*AuthUser, bool) {
	user, ok := ctx.Value(authUserContextKey).(*AuthUser)
	return user, ok && user != nil
}

// UserIDFromContext retrieves the user ID from context.
// Returns empty string if no user is present.
func UserIDFromContext(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return user.ID
	}
	return ""
}

// IsAuthenticated returns true if there is a user in context.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}

// --- Cart Session Context Helpers ---

// NewContextWithCartSession returns a new context with the cart session ID attached.
func NewContextWithCartSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, cartSessionContextKey, sessionID)
}

// CartSessionFromContext retrieves the cart session ID from context.
// The second return value reports whether a session is present.
func CartSessionFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(cartSessionContextKey).(string)
	return sessionID, ok && sessionID != ""
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
