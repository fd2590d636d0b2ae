package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
	"github.com/restory/server/internal/service"
)

// CheckoutHandler handles payment checkout routes
type CheckoutHandler struct {
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

type startCheckoutResponse struct {
	SessionID string  `json:"session_id"`
	URL       string  `json:"url"`
	Total     float64 `json:"total"`
}

// Start handles POST /api/checkout.
// It snapshots the current cart, creates a provider checkout session,
// and returns the hosted payment page URL for the client to redirect to.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := domain.CartSessionFromContext(r.Context())
	if !ok {
		handler.InternalErrorResponse(w, r, errors.New("cart session missing from request context"))
		return
	}

	var userID, userEmail string
	if user, ok := domain.UserFromContext(r.Context()); ok {
		userID = user.ID
		userEmail = user.Email
	}

	result, err := h.checkout.Start(r.Context(), sessionID, userID, userEmail)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, startCheckoutResponse{
		SessionID: result.GatewaySessionID,
		URL:       result.URL,
		Total:     domain.AmountFromCents(result.TotalCents),
	})
}

type orderResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
	// TotalDisplay carries the exact amount as a decimal string,
	// e.g. "250.00", so clients can render it without float rounding.
	TotalDisplay string              `json:"total_display"`
	Currency     string              `json:"currency"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    string              `json:"created_at"`
}

type orderItemResponse struct {
	BookID   string  `json:"book_id"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Status:       string(o.Status),
		Total:        domain.AmountFromCents(o.TotalCents),
		TotalDisplay: domain.FormatCents(o.TotalCents),
		Currency:     o.Currency,
		Items:        make([]orderItemResponse, len(o.Items)),
		CreatedAt:    o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for i, item := range o.Items {
		resp.Items[i] = orderItemResponse{
			BookID:   item.BookID,
			Title:    item.Title,
			Author:   item.Author,
			Price:    domain.AmountFromCents(item.PriceCents),
			Quantity: item.Quantity,
		}
	}
	return resp
}

// Success handles GET /api/checkout/success.
// The payment provider redirects the shopper here after payment. The
// session is re-verified with the provider before the order is
// confirmed, so a hand-crafted redirect cannot mark anything paid.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	gatewaySessionID := r.URL.Query().Get("session_id")
	if gatewaySessionID == "" {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.success", "session_id query parameter is required"))
		return
	}

	order, err := h.checkout.HandleReturn(r.Context(), gatewaySessionID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"order": toOrderResponse(order),
	})
}

// Cancel handles GET /api/checkout/cancel.
// The provider redirects here when the shopper backs out. The cart is
// left untouched so they can try again.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	gatewaySessionID := r.URL.Query().Get("session_id")
	if gatewaySessionID != "" {
		h.checkout.HandleCancel(r.Context(), gatewaySessionID)
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": true,
	})
}
