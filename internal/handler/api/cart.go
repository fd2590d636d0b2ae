package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/restory/server/internal/cart"
	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
)

// CartHandler handles shopping cart routes. The cart is keyed by the
// session cookie, so all routes require the cart session middleware.
type CartHandler struct {
	carts  *cart.Manager
	books  domain.BookService
	logger *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *cart.Manager, books domain.BookService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{
		carts:  carts,
		books:  books,
		logger: logger,
	}
}

type cartLineResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Total     float64            `json:"total"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	lines := c.Lines()
	resp := cartResponse{
		Lines:     make([]cartLineResponse, len(lines)),
		ItemCount: c.ItemCount(),
		Total:     domain.AmountFromCents(c.TotalCents()),
	}
	for i, l := range lines {
		resp.Lines[i] = cartLineResponse{
			ID:       l.ID,
			Title:    l.Title,
			Author:   l.Author,
			Price:    domain.AmountFromCents(l.PriceCents),
			ImageURL: l.ImageURL,
			Quantity: l.Quantity,
			Subtotal: domain.AmountFromCents(l.PriceCents * int64(l.Quantity)),
		}
	}
	return resp
}

// load fetches the cart for the current session
func (h *CartHandler) load(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	sessionID, ok := domain.CartSessionFromContext(r.Context())
	if !ok {
		handler.InternalErrorResponse(w, r, errors.New("cart session missing from request context"))
		return nil, false
	}

	c, err := h.carts.Get(r.Context(), sessionID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return nil, false
	}
	return c, true
}

// View handles GET /api/cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}

type addCartItemRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

// Add handles POST /api/cart/items.
// The listing's current title and price are snapshotted into the cart
// line when it is first added; adding the same listing again only
// raises the quantity.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		handler.ErrorResponse(w, r, domain.ErrInvalidQuantity)
		return
	}

	book, err := h.books.GetBook(r.Context(), req.BookID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if book.Sold {
		handler.ErrorResponse(w, r, domain.ErrBookSold)
		return
	}

	c, ok := h.load(w, r)
	if !ok {
		return
	}

	err = c.AddItem(cart.Line{
		ID:         book.ID,
		Title:      book.Title,
		Author:     book.Author,
		PriceCents: book.PriceCents,
		ImageURL:   book.ImageURL,
		Quantity:   req.Quantity,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}

// Remove handles DELETE /api/cart/items/{id}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	c.RemoveItem(r.PathValue("id"))

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}

// Increase handles POST /api/cart/items/{id}/increase
func (h *CartHandler) Increase(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	c.IncreaseQuantity(r.PathValue("id"))

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}

// Decrease handles POST /api/cart/items/{id}/decrease.
// Decreasing a line at quantity one removes it from the cart.
func (h *CartHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	c.DecreaseQuantity(r.PathValue("id"))

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	c.Clear()

	handler.RespondJSON(w, http.StatusOK, toCartResponse(c))
}
