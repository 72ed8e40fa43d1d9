// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("concurrent modification")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Problem types keep each error kind distinguishable by API consumers.
const (
	TypeNotFound          = "/problems/not-found"
	TypeDuplicate         = "/problems/duplicate"
	TypeValidation        = "/problems/validation"
	TypeForbidden         = "/problems/forbidden"
	TypeUnauthorized      = "/problems/unauthenticated"
	TypeInvalidTransition = "/problems/invalid-transition"
	TypeConflict          = "/problems/conflict"
	TypeInternal          = "/problems/internal"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		TypedProblem(w, TypeNotFound, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		TypedProblem(w, TypeDuplicate, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		TypedProblem(w, TypeValidation, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		TypedProblem(w, TypeForbidden, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		TypedProblem(w, TypeUnauthorized, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		TypedProblem(w, TypeInvalidTransition, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, ErrConflict):
		TypedProblem(w, TypeConflict, http.StatusConflict, "Conflict", err.Error())
	default:
		TypedProblem(w, TypeInternal, http.StatusInternalServerError, "Internal Error", "")
	}
}

// TranslatePgError converts driver errors into domain sentinels.
func TranslatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%w: constraint %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrDuplicate, ErrValidation, ErrForbidden, ErrUnauthorized, ErrInvalidTransition, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
