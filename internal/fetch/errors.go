package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies fetch failures.
type Kind string

const (
	KindNetwork Kind = "network"
	KindAuth    Kind = "auth"
	KindEmpty   Kind = "empty"
)

// Error represents a failure to fetch a target.
type Error struct {
	Kind    Kind
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error (%s) for %s: %s: %v", e.Kind, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error (%s) for %s: %s", e.Kind, e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a fetch error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// KindOf returns the kind of a fetch error, or "" for other errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// kindForStatus maps an HTTP status code to an error kind. 999 is LinkedIn's bot wall.
func kindForStatus(status int) Kind {
	switch status {
	case 401, 403, 999:
		return KindAuth
	default:
		return KindNetwork
	}
}
