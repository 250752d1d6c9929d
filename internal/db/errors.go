package db

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidRange is returned when a date window starts after it ends.
var ErrInvalidRange = errors.New("invalid date range")

// ErrCompanyNotFound is returned when an operation names an unknown company.
var ErrCompanyNotFound = errors.New("company not found")

// IsConstraintViolation reports whether err is an integrity constraint violation
// (SQLSTATE class 23: unique, foreign key, not null, check).
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}

// IsConnectionError reports whether err means the database is unreachable, as opposed to a
// problem with one statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P01-57P03: server shutting down or unavailable
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return strings.Contains(err.Error(), "closed pool")
}
