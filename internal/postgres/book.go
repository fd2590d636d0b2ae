package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restory/server/internal/domain"
)

// BookService implements domain.BookService using PostgreSQL.
type BookService struct {
	db *pgxpool.Pool
}

// Compile-time check that BookService implements domain.BookService.
var _ domain.BookService = (*BookService)(nil)

// NewBookService creates a new PostgreSQL-backed book service.
func NewBookService(db *pgxpool.Pool) *BookService {
	return &BookService{db: db}
}

const bookColumns = `id::text, title, author, publication_year, genre, price_cents,
	image_url, description, transaction_type, seller_details, condition, sold,
	created_at, updated_at`

// ListBooks returns listings matching the given filters.
func (s *BookService) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	var (
		conds []string
		args  []any
	)

	if !filter.IncludeSold {
		conds = append(conds, "NOT sold")
	}
	if filter.Genre != nil {
		args = append(args, *filter.Genre)
		conds = append(conds, fmt.Sprintf("genre = $%d", len(args)))
	}
	if filter.Author != nil {
		args = append(args, *filter.Author)
		conds = append(conds, fmt.Sprintf("author = $%d", len(args)))
	}
	if filter.TransactionType != nil {
		args = append(args, string(*filter.TransactionType))
		conds = append(conds, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.MaxPriceCents != nil {
		args = append(args, *filter.MaxPriceCents)
		conds = append(conds, fmt.Sprintf("price_cents <= $%d", len(args)))
	}

	query := "SELECT " + bookColumns + " FROM books"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "book.list", "failed to list books")
	}
	defer rows.Close()

	return scanBooks(rows, "book.list")
}

// ListForSale returns unsold listings members have offered to sell.
func (s *BookService) ListForSale(ctx context.Context) ([]domain.Book, error) {
	query := "SELECT " + bookColumns + ` FROM books
		WHERE transaction_type = 'sell' AND NOT sold
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, "book.list_for_sale", "failed to list books for sale")
	}
	defer rows.Close()

	return scanBooks(rows, "book.list_for_sale")
}

// GetBook retrieves a listing by ID.
func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if !validUUID(id) {
		return nil, domain.ErrBookNotFound
	}

	query := "SELECT " + bookColumns + " FROM books WHERE id = $1"

	var b domain.Book
	err := s.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.Genre, &b.PriceCents,
		&b.ImageURL, &b.Description, &b.TransactionType, &b.SellerDetails,
		&b.Condition, &b.Sold, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, domain.Internal(err, "book.get", "failed to get book")
	}

	return &b, nil
}

// CreateBook creates a new listing.
func (s *BookService) CreateBook(ctx context.Context, params domain.CreateBookParams) (*domain.Book, error) {
	if err := validateCreateBook(params); err != nil {
		return nil, err
	}

	query := `INSERT INTO books
		(title, author, publication_year, genre, price_cents, image_url,
		 description, transaction_type, seller_details, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + bookColumns

	var b domain.Book
	err := s.db.QueryRow(ctx, query,
		params.Title, params.Author, params.PublicationYear, params.Genre,
		params.PriceCents, params.ImageURL, params.Description,
		string(params.TransactionType), params.SellerDetails, string(params.Condition),
	).Scan(
		&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.Genre, &b.PriceCents,
		&b.ImageURL, &b.Description, &b.TransactionType, &b.SellerDetails,
		&b.Condition, &b.Sold, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, domain.Internal(err, "book.create", "failed to create book")
	}

	return &b, nil
}

// UpdateBook updates an existing listing. Nil fields are left unchanged.
func (s *BookService) UpdateBook(ctx context.Context, id string, params domain.UpdateBookParams) (*domain.Book, error) {
	if !validUUID(id) {
		return nil, domain.ErrBookNotFound
	}
	if params.PriceCents != nil && *params.PriceCents < 0 {
		return nil, domain.Invalid("book.update", "price must not be negative")
	}
	if params.Condition != nil && !params.Condition.Valid() {
		return nil, domain.ErrInvalidCondition
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Title != nil {
		set("title", *params.Title)
	}
	if params.Author != nil {
		set("author", *params.Author)
	}
	if params.PublicationYear != nil {
		set("publication_year", *params.PublicationYear)
	}
	if params.Genre != nil {
		set("genre", *params.Genre)
	}
	if params.PriceCents != nil {
		set("price_cents", *params.PriceCents)
	}
	if params.ImageURL != nil {
		set("image_url", *params.ImageURL)
	}
	if params.Description != nil {
		set("description", *params.Description)
	}
	if params.SellerDetails != nil {
		set("seller_details", *params.SellerDetails)
	}
	if params.Condition != nil {
		set("condition", string(*params.Condition))
	}

	if len(sets) == 0 {
		return s.GetBook(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE books SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), bookColumns)

	var b domain.Book
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.Genre, &b.PriceCents,
		&b.ImageURL, &b.Description, &b.TransactionType, &b.SellerDetails,
		&b.Condition, &b.Sold, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, domain.Internal(err, "book.update", "failed to update book")
	}

	return &b, nil
}

// DeleteBook removes a listing.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	if !validUUID(id) {
		return domain.ErrBookNotFound
	}

	tag, err := s.db.Exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return domain.Internal(err, "book.delete", "failed to delete book")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

// MarkSold flags listings as sold after a completed purchase.
// Already-sold listings are skipped without error.
func (s *BookService) MarkSold(ctx context.Context, ids []string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	query := `UPDATE books SET sold = true, updated_at = now()
		WHERE id = ANY($1::uuid[]) AND NOT sold`

	if _, err := s.db.Exec(ctx, query, valid); err != nil {
		return domain.Internal(err, "book.mark_sold", "failed to mark books sold")
	}

	return nil
}

func validateCreateBook(params domain.CreateBookParams) error {
	if params.Title == "" {
		return domain.NewValidationError("book.create", "title", "title is required")
	}
	if params.Author == "" {
		return domain.NewValidationError("book.create", "author", "author is required")
	}
	if params.PriceCents < 0 {
		return domain.NewValidationError("book.create", "price", "price must not be negative")
	}
	if !params.TransactionType.Valid() {
		return domain.ErrInvalidTransactionType
	}
	if !params.Condition.Valid() {
		return domain.ErrInvalidCondition
	}
	return nil
}

func scanBooks(rows pgx.Rows, op string) ([]domain.Book, error) {
	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.Genre, &b.PriceCents,
			&b.ImageURL, &b.Description, &b.TransactionType, &b.SellerDetails,
			&b.Condition, &b.Sold, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, domain.Internal(err, op, "failed to scan book row")
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read book rows")
	}
	return books, nil
}
