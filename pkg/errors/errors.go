// Package errors defines the typed error codes the API maps onto HTTP
// responses. Services return *Error; transport code reads the code's
// Metadata to pick a status and decide what reaches the client.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// checkout and catalog failures surfaced to clients by name
	CodeNotAuthenticated     Code = "NOT_AUTHENTICATED"
	CodeEmptyCart            Code = "EMPTY_CART"
	CodePersistence          Code = "PERSISTENCE_ERROR"
	CodeCustomerCreateFailed Code = "CUSTOMER_CREATE_FAILED"
	CodeIntentCreateFailed   Code = "INTENT_CREATE_FAILED"
	CodeConfirmFailed        Code = "CONFIRM_FAILED"
	CodeOrderUpdateFailed    Code = "ORDER_UPDATE_FAILED"
	CodeAlreadyOwned         Code = "ALREADY_OWNED"
	CodeInvalidUpload        Code = "INVALID_UPLOAD"
)

// Metadata describes how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type metaOpt func(*Metadata)

func retryable(m *Metadata)   { m.Retryable = true }
func withDetails(m *Metadata) { m.DetailsAllowed = true }

func meta(status int, public string, opts ...metaOpt) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeNotAuthenticated: meta(http.StatusUnauthorized, "not authenticated"),
	CodeUnauthorized:     meta(http.StatusForbidden, "not authorized"),
	CodeForbidden:        meta(http.StatusForbidden, "access denied"),
	CodeNotFound:         meta(http.StatusNotFound, "resource not found"),
	CodeConflict:         meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict:    meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:      meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:        meta(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:         meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:       meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),

	CodeEmptyCart:            meta(http.StatusBadRequest, "cart is empty"),
	CodePersistence:          meta(http.StatusInternalServerError, "failed to persist changes", retryable),
	CodeCustomerCreateFailed: meta(http.StatusBadGateway, "failed to create payment customer", retryable),
	CodeIntentCreateFailed:   meta(http.StatusBadGateway, "failed to create payment intent", retryable),
	CodeConfirmFailed:        meta(http.StatusPaymentRequired, "payment confirmation failed", withDetails),
	CodeOrderUpdateFailed:    meta(http.StatusInternalServerError, "failed to update order", retryable),
	CodeAlreadyOwned:         meta(http.StatusConflict, "course already owned"),
	CodeInvalidUpload:        meta(http.StatusBadRequest, "invalid upload", withDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf reports err's code; untyped errors are CodeInternal and nil is "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// HasCode reports whether the outermost typed error in err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
