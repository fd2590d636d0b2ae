// Package api contains the JSON API handlers for the marketplace.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
)

// BookHandler handles catalog listing routes
type BookHandler struct {
	books  domain.BookService
	logger *slog.Logger
}

// NewBookHandler creates a new book handler
func NewBookHandler(books domain.BookService, logger *slog.Logger) *BookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{
		books:  books,
		logger: logger,
	}
}

type bookResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	PublicationYear int32   `json:"publication_year,omitempty"`
	Genre           string  `json:"genre,omitempty"`
	Price           float64 `json:"price"`
	PriceCents      int64   `json:"price_cents"`
	ImageURL        string  `json:"image_url,omitempty"`
	Description     string  `json:"description,omitempty"`
	TransactionType string  `json:"transaction_type"`
	SellerDetails   string  `json:"seller_details,omitempty"`
	Condition       string  `json:"condition"`
	Sold            bool    `json:"sold"`
}

func toBookResponse(b *domain.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		PublicationYear: b.PublicationYear,
		Genre:           b.Genre,
		Price:           domain.AmountFromCents(b.PriceCents),
		PriceCents:      b.PriceCents,
		ImageURL:        b.ImageURL,
		Description:     b.Description,
		TransactionType: string(b.TransactionType),
		SellerDetails:   b.SellerDetails,
		Condition:       string(b.Condition),
		Sold:            b.Sold,
	}
}

func toBookListResponse(books []domain.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i := range books {
		out[i] = toBookResponse(&books[i])
	}
	return out
}

// List handles GET /api/books
//
// Query parameters:
//   - genre: filter by genre
//   - author: filter by author
//   - transaction_type: "buy" or "sell"
//   - max_price: maximum price as a decimal amount
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.BookFilter{}

	q := r.URL.Query()
	if genre := q.Get("genre"); genre != "" {
		filter.Genre = &genre
	}
	if author := q.Get("author"); author != "" {
		filter.Author = &author
	}
	if tt := q.Get("transaction_type"); tt != "" {
		transactionType := domain.TransactionType(tt)
		if !transactionType.Valid() {
			handler.ErrorResponse(w, r, domain.ErrInvalidTransactionType)
			return
		}
		filter.TransactionType = &transactionType
	}
	if maxPrice := q.Get("max_price"); maxPrice != "" {
		cents, err := parsePriceCents(maxPrice)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid("book.list", "max_price must be a positive number"))
			return
		}
		filter.MaxPriceCents = &cents
	}

	books, err := h.books.ListBooks(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"books": toBookListResponse(books),
	})
}

// ListForSale handles GET /api/books/for-sale
func (h *BookHandler) ListForSale(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListForSale(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"books": toBookListResponse(books),
	})
}

// Get handles GET /api/books/{id}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	book, err := h.books.GetBook(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toBookResponse(book))
}

type createBookRequest struct {
	Title           string  `json:"title" validate:"required,max=500"`
	Author          string  `json:"author" validate:"required,max=200"`
	PublicationYear int32   `json:"publication_year" validate:"omitempty,gte=0"`
	Genre           string  `json:"genre" validate:"omitempty,max=100"`
	Price           float64 `json:"price" validate:"gte=0"`
	ImageURL        string  `json:"image_url" validate:"omitempty,url"`
	Description     string  `json:"description"`
	TransactionType string  `json:"transaction_type" validate:"required,oneof=buy sell"`
	SellerDetails   string  `json:"seller_details"`
	Condition       string  `json:"condition" validate:"required"`
}

// Create handles POST /api/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	priceCents, err := domain.CentsFromAmount(req.Price)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("book.create", "price must be a non-negative number"))
		return
	}

	book, err := h.books.CreateBook(r.Context(), domain.CreateBookParams{
		Title:           req.Title,
		Author:          req.Author,
		PublicationYear: req.PublicationYear,
		Genre:           req.Genre,
		PriceCents:      priceCents,
		ImageURL:        req.ImageURL,
		Description:     req.Description,
		TransactionType: domain.TransactionType(req.TransactionType),
		SellerDetails:   req.SellerDetails,
		Condition:       domain.Condition(req.Condition),
	})
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusCreated, toBookResponse(book))
}

type updateBookRequest struct {
	Title           *string  `json:"title" validate:"omitempty,max=500"`
	Author          *string  `json:"author" validate:"omitempty,max=200"`
	PublicationYear *int32   `json:"publication_year" validate:"omitempty,gte=0"`
	Genre           *string  `json:"genre" validate:"omitempty,max=100"`
	Price           *float64 `json:"price" validate:"omitempty,gte=0"`
	ImageURL        *string  `json:"image_url" validate:"omitempty,url"`
	Description     *string  `json:"description"`
	SellerDetails   *string  `json:"seller_details"`
	Condition       *string  `json:"condition"`
}

// Update handles PUT /api/books/{id}
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateBookRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	params := domain.UpdateBookParams{
		Title:           req.Title,
		Author:          req.Author,
		PublicationYear: req.PublicationYear,
		Genre:           req.Genre,
		ImageURL:        req.ImageURL,
		Description:     req.Description,
		SellerDetails:   req.SellerDetails,
	}
	if req.Price != nil {
		cents, err := domain.CentsFromAmount(*req.Price)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid("book.update", "price must be a non-negative number"))
			return
		}
		params.PriceCents = &cents
	}
	if req.Condition != nil {
		condition := domain.Condition(*req.Condition)
		if !condition.Valid() {
			handler.ErrorResponse(w, r, domain.ErrInvalidCondition)
			return
		}
		params.Condition = &condition
	}

	book, err := h.books.UpdateBook(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toBookResponse(book))
}

// Delete handles DELETE /api/books/{id}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.books.DeleteBook(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePriceCents converts a decimal amount string to integer cents
func parsePriceCents(s string) (int64, error) {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return domain.CentsFromAmount(amount)
}
