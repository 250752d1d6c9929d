// Package server provides the HTTP REST API over recorded job changes.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/job-change-tracker/internal/db"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates the requested resource does not exist
type ErrNotFound struct {
	Resource string
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validation *ErrValidation
	var notFound *ErrNotFound
	switch {
	case errors.As(err, &validation), errors.Is(err, db.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, db.ErrCompanyNotFound):
		return http.StatusNotFound
	case db.IsConnectionError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
