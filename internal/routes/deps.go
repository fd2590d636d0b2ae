package routes

import (
	"net/http"

	"github.com/restory/server/internal/handler/api"
)

// APIDeps contains dependencies for the JSON API routes
type APIDeps struct {
	// Catalog
	BookHandler *api.BookHandler

	// Accounts
	AuthHandler    *api.AuthHandler
	ProfileHandler *api.ProfileHandler

	// Shopping
	CartHandler     *api.CartHandler
	CheckoutHandler *api.CheckoutHandler
	OrderHandler    *api.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
