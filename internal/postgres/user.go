package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restory/server/internal/auth"
	"github.com/restory/server/internal/domain"
)

// UserService implements domain.UserService using PostgreSQL.
type UserService struct {
	db *pgxpool.Pool
}

// Compile-time check that UserService implements domain.UserService.
var _ domain.UserService = (*UserService)(nil)

// NewUserService creates a new PostgreSQL-backed user service.
func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const userColumns = `id::text, first_name, last_name, email, password_hash, created_at, updated_at`

// Register creates a new user account with a hashed password.
func (s *UserService) Register(ctx context.Context, firstName, lastName, email, password string) (*domain.User, error) {
	if firstName == "" {
		return nil, domain.NewValidationError("user.register", "firstname", "first name is required")
	}
	if lastName == "" {
		return nil, domain.NewValidationError("user.register", "lastname", "last name is required")
	}
	if email == "" {
		return nil, domain.NewValidationError("user.register", "email", "email is required")
	}

	// ErrPasswordTooShort is already a domain validation error and
	// passes through as-is
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO users (first_name, last_name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	var u domain.User
	err = s.db.QueryRow(ctx, query, firstName, lastName, email, hash).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, domain.Internal(err, "user.register", "failed to create user")
	}

	return &u, nil
}

// Authenticate verifies email/password and returns the user if valid.
// Lookup misses and password mismatches both return ErrInvalidPassword
// so a caller cannot discover which emails are registered.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrInvalidPassword
		}
		return nil, err
	}

	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, domain.ErrInvalidPassword
		}
		return nil, domain.Internal(err, "user.authenticate", "failed to verify password")
	}

	return u, nil
}

// GetUserByID retrieves a user by ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validUUID(id) {
		return nil, domain.ErrUserNotFound
	}

	query := "SELECT " + userColumns + " FROM users WHERE id = $1"

	var u domain.User
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err, "user.get", "failed to get user")
	}

	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = $1"

	var u domain.User
	err := s.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err, "user.get_by_email", "failed to get user")
	}

	return &u, nil
}
