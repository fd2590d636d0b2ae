package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/restory/server/internal/domain"
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8

	bcryptCost = 12
)

var (
	ErrPasswordTooShort = &domain.Error{
		Code:    domain.EINVALID,
		Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
	}
	ErrPasswordMismatch = &domain.Error{
		Code:    domain.EUNAUTHORIZED,
		Message: "Password does not match",
	}
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", domain.Internal(err, "auth.hash_password", "failed to hash password")
	}

	return string(hash), nil
}

// VerifyPassword compares password against a stored bcrypt hash.
func VerifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return domain.Internal(err, "auth.verify_password", "failed to verify password")
	}
	return nil
}
