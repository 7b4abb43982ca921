// Package apperr defines the error kinds shared by stores, services and handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrLimitExceeded   = errors.New("limit exceeded")
	ErrDuplicateOwner  = errors.New("duplicate owner")
	ErrInvalidBatch    = errors.New("invalid batch")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstream        = errors.New("upstream error")
	ErrConnection      = errors.New("connection error")
)

// Error carries a client-safe message next to its kind and underlying cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newf(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) error {
	return newf(ErrValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, nil, format, args...)
}

func LimitExceeded(format string, args ...any) error {
	return newf(ErrLimitExceeded, nil, format, args...)
}

func DuplicateOwner(format string, args ...any) error {
	return newf(ErrDuplicateOwner, nil, format, args...)
}

func InvalidBatch(format string, args ...any) error {
	return newf(ErrInvalidBatch, nil, format, args...)
}

func Upstream(cause error, format string, args ...any) error {
	return newf(ErrUpstream, cause, format, args...)
}

func UpstreamTimeout(cause error, format string, args ...any) error {
	return newf(ErrUpstreamTimeout, cause, format, args...)
}

func Connection(cause error, format string, args ...any) error {
	return newf(ErrConnection, cause, format, args...)
}

// FromStore classifies a driver error raised by op. Errors that already carry
// a kind pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case isServerSelection(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected):
		return Connection(err, "%s: store unavailable", op)
	case errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err):
		return UpstreamTimeout(err, "%s: store timed out", op)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isServerSelection(err error) bool {
	var sel topology.ServerSelectionError
	return errors.As(err, &sel)
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// Status maps an error to the HTTP status its kind implies.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidBatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateOwner):
		return http.StatusConflict
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Untyped errors are hidden.
func Message(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Error()
	}
	return "internal server error"
}
