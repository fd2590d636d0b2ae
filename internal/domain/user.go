package domain

import (
	"context"
	"time"
)

// =============================================================================
// USER DOMAIN TYPES
// =============================================================================

// User represents a registered member of the marketplace.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile holds the optional public profile attached to a user.
type Profile struct {
	UserID      string
	Bio         string
	DateOfBirth *time.Time
	Location    Location
	Interests   []string
	UpdatedAt   time.Time
}

// Location is a free-form city/country pair on a profile.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// MaxBioLength bounds the profile bio field.
const MaxBioLength = 300

// =============================================================================
// SERVICE INTERFACES
// =============================================================================

// UserService provides business logic for account operations.
type UserService interface {
	// Register creates a new user account with a hashed password.
	Register(ctx context.Context, firstName, lastName, email, password string) (*User, error)

	// Authenticate verifies email/password and returns the user if valid.
	Authenticate(ctx context.Context, email, password string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ProfileService provides business logic for profile operations.
type ProfileService interface {
	// GetProfile retrieves the profile for a user.
	// Returns an empty profile if the user has not filled one in.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// UpsertProfile creates or replaces the profile for a user.
	UpsertProfile(ctx context.Context, userID string, params UpsertProfileParams) (*Profile, error)
}

// UpsertProfileParams contains parameters for creating or updating a profile.
type UpsertProfileParams struct {
	Bio         string
	DateOfBirth *time.Time
	Location    Location
	Interests   []string
}

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

var (
	ErrUserNotFound    = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrUserExists      = &Error{Code: ECONFLICT, Message: "User with this email already exists"}
	ErrInvalidPassword = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}

	ErrBioTooLong = &Error{Code: EINVALID, Message: "Bio must be 300 characters or fewer"}
)
