package domain

import (
	"context"
	"time"
)

// =============================================================================
// BOOK DOMAIN TYPES
// =============================================================================

// TransactionType distinguishes listings offered for purchase from
// listings a member wants to sell through the marketplace.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Condition describes the physical state of a used book.
type Condition string

const (
	ConditionNew        Condition = "New"
	ConditionLikeNew    Condition = "Like new"
	ConditionGood       Condition = "Good"
	ConditionAcceptable Condition = "Acceptable"
	ConditionDamaged    Condition = "Damaged"
)

// Valid reports whether c is one of the accepted condition values.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionAcceptable, ConditionDamaged:
		return true
	}
	return false
}

// Valid reports whether t is one of the accepted transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionBuy || t == TransactionSell
}

// Book represents a catalog listing. Each listing is a single physical
// copy, so a sale marks the listing itself as sold rather than
// decrementing stock.
type Book struct {
	ID              string
	Title           string
	Author          string
	PublicationYear int32
	Genre           string
	PriceCents      int64
	ImageURL        string
	Description     string
	TransactionType TransactionType
	SellerDetails   string
	Condition       Condition
	Sold            bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookFilter contains optional filters for catalog listing.
type BookFilter struct {
	Genre           *string
	Author          *string
	TransactionType *TransactionType
	MaxPriceCents   *int64
	IncludeSold     bool
}

// CreateBookParams contains parameters for creating a listing.
type CreateBookParams struct {
	Title           string
	Author          string
	PublicationYear int32
	Genre           string
	PriceCents      int64
	ImageURL        string
	Description     string
	TransactionType TransactionType
	SellerDetails   string
	Condition       Condition
}

// UpdateBookParams contains parameters for updating a listing.
// Pointer fields indicate optional updates (nil = no change).
type UpdateBookParams struct {
	Title           *string
	Author          *string
	PublicationYear *int32
	Genre           *string
	PriceCents      *int64
	ImageURL        *string
	Description     *string
	SellerDetails   *string
	Condition       *Condition
}

// =============================================================================
// SERVICE INTERFACE
// =============================================================================

// BookService provides business logic for catalog operations.
type BookService interface {
	// ListBooks returns listings matching the given filters.
	// Sold listings are excluded unless the filter asks for them.
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)

	// ListForSale returns unsold listings members have offered to sell.
	ListForSale(ctx context.Context) ([]Book, error)

	// GetBook retrieves a listing by ID.
	GetBook(ctx context.Context, id string) (*Book, error)

	// CreateBook creates a new listing.
	CreateBook(ctx context.Context, params CreateBookParams) (*Book, error)

	// UpdateBook updates an existing listing.
	UpdateBook(ctx context.Context, id string, params UpdateBookParams) (*Book, error)

	// DeleteBook removes a listing.
	DeleteBook(ctx context.Context, id string) error

	// MarkSold flags listings as sold after a completed purchase.
	// Already-sold listings are skipped without error.
	MarkSold(ctx context.Context, ids []string) error
}

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

var (
	ErrBookNotFound = &Error{Code: ENOTFOUND, Message: "Book not found"}
	ErrBookSold     = &Error{Code: ECONFLICT, Message: "Book has already been sold"}

	ErrInvalidCondition       = &Error{Code: EINVALID, Message: "Invalid book condition"}
	ErrInvalidTransactionType = &Error{Code: EINVALID, Message: "Invalid transaction type"}
)
