package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/restory/server/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RespondJSON writes v as a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Decode parses the request body into dst and validates it against
// the struct's validate tags. Returns a domain error suitable for
// ErrorResponse or ValidationErrorResponse.
func Decode(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return domain.Errorf(domain.EINVALID, "", "Request body is required")
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Errorf(domain.ETOOLARGE, "", "Request body too large")
		}
		return domain.Errorf(domain.EINVALID, "", "Invalid JSON in request body")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.Errorf(domain.EINVALID, "", "Invalid request")
		}

		var result error
		for _, fe := range verrs {
			field := jsonFieldName(fe)
			msg := validationMessage(fe)
			if result == nil {
				result = domain.NewValidationError("", field, msg)
			} else {
				result = domain.AddFieldError(result, field, msg)
			}
		}
		return result
	}

	return nil
}

// jsonFieldName converts a validator field reference to its snake_case
// JSON name so error messages match the request payload
func jsonFieldName(fe validator.FieldError) string {
	var sb strings.Builder
	for i, r := range fe.Field() {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
