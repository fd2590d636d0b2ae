package routes

import (
	"github.com/restory/server/internal/middleware"
	"github.com/restory/server/internal/router"
)

// RegisterAPIRoutes registers the JSON API routes.
//
// The secure flag controls whether session cookies require HTTPS.
func RegisterAPIRoutes(r *router.Router, deps APIDeps, secure bool) {
	// All API requests carry small JSON bodies
	base := r.Group(middleware.MaxBodySize(middleware.MB))

	// Credential endpoints get stricter rate limiting
	authLimited := base.Group(middleware.RateLimit(middleware.StrictRateLimiterConfig()))

	// Account routes
	authLimited.Post("/api/auth/register", deps.AuthHandler.Register)
	authLimited.Post("/api/auth/login", deps.AuthHandler.Login)
	base.Get("/api/auth/me", deps.AuthHandler.Me, middleware.RequireAuth)

	// Catalog routes. Listing and detail are public; mutations require
	// a signed-in member.
	base.Get("/api/books", deps.BookHandler.List)
	base.Get("/api/books/for-sale", deps.BookHandler.ListForSale)
	base.Get("/api/books/{id}", deps.BookHandler.Get)
	base.Post("/api/books", deps.BookHandler.Create, middleware.RequireAuth)
	base.Put("/api/books/{id}", deps.BookHandler.Update, middleware.RequireAuth)
	base.Delete("/api/books/{id}", deps.BookHandler.Delete, middleware.RequireAuth)

	// Profile routes
	base.Get("/api/profile", deps.ProfileHandler.Get, middleware.RequireAuth)
	base.Put("/api/profile", deps.ProfileHandler.Upsert, middleware.RequireAuth)

	// Cart routes are keyed by the session cookie, not the account,
	// so guests can shop before signing in
	cart := base.Group(middleware.WithCartSession(secure))
	cart.Get("/api/cart", deps.CartHandler.View)
	cart.Delete("/api/cart", deps.CartHandler.Clear)
	cart.Post("/api/cart/items", deps.CartHandler.Add)
	cart.Delete("/api/cart/items/{id}", deps.CartHandler.Remove)
	cart.Post("/api/cart/items/{id}/increase", deps.CartHandler.Increase)
	cart.Post("/api/cart/items/{id}/decrease", deps.CartHandler.Decrease)

	// Checkout routes
	cart.Post("/api/checkout", deps.CheckoutHandler.Start)
	cart.Get("/api/checkout/success", deps.CheckoutHandler.Success)
	cart.Get("/api/checkout/cancel", deps.CheckoutHandler.Cancel)

	// Order history
	base.Get("/api/orders", deps.OrderHandler.List, middleware.RequireAuth)
}
