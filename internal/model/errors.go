package model

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures. Business-rule kinds propagate to the
// caller unchanged; everything else is wrapped as an internal failure with
// the original message kept for logs.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindNotFound
	KindForbidden
	KindAlreadyClosed
	KindAccumulatorUnavailable
	KindSimulationFailed
	KindSubmissionFailed
	KindRetryExhausted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindAlreadyClosed:
		return "already_closed"
	case KindAccumulatorUnavailable:
		return "accumulator_unavailable"
	case KindSimulationFailed:
		return "simulation_failed"
	case KindSubmissionFailed:
		return "submission_failed"
	case KindRetryExhausted:
		return "retry_exhausted"
	default:
		return "internal"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with the given kind. A nil err produces an error whose
// message is just the kind name.
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsBusiness reports whether err is a business-rule failure that must be
// surfaced to the caller verbatim rather than collapsed.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindInvalidRequest, KindNotFound, KindForbidden, KindAlreadyClosed:
		return true
	default:
		return false
	}
}
