package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindInsufficientStock  ErrorKind = "insufficient_stock"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindInternal           ErrorKind = "internal"
)

// HTTPStatus is the status the handler answers with for this kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindInvalidTransition:
		return http.StatusConflict
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// OrderError is the only error type the order usecases return.
type OrderError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OrderError) Unwrap() error { return e.Err }

// Is matches any *OrderError of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *OrderError) Is(target error) bool {
	t, ok := target.(*OrderError)
	return ok && t.Kind == e.Kind
}

// sentinels for errors.Is
var (
	ErrValidation         = &OrderError{Kind: KindValidation}
	ErrNotFound           = &OrderError{Kind: KindNotFound}
	ErrInsufficientStock  = &OrderError{Kind: KindInsufficientStock}
	ErrGatewayUnavailable = &OrderError{Kind: KindGatewayUnavailable}
	ErrInvalidTransition  = &OrderError{Kind: KindInvalidTransition}
	ErrInternal           = &OrderError{Kind: KindInternal}
)

func newError(kind ErrorKind, format string, args ...any) error {
	return &OrderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, message string) error {
	return &OrderError{Kind: kind, Message: message, Err: err}
}

// internal wraps a storage error unless it is already an *OrderError.
func internal(err error, message string) error {
	if oe, ok := AsOrderError(err); ok {
		return oe
	}
	return wrapError(KindInternal, err, message)
}

func AsOrderError(err error) (*OrderError, bool) {
	var oe *OrderError
	ok := errors.As(err, &oe)
	return oe, ok
}
