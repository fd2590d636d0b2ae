package api

import (
	"log/slog"
	"net/http"

	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
)

// OrderHandler handles order history routes
type OrderHandler struct {
	orders domain.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders domain.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// List handles GET /api/orders, returning the authenticated user's
// order history, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return
	}

	orders, err := h.orders.ListOrdersByUser(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"orders": out,
	})
}
