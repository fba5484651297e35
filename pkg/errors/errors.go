package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// commerce
	CodeAuthRequired              Code = "AUTH_REQUIRED"
	CodeProductNotFound           Code = "PRODUCT_NOT_FOUND"
	CodeOutOfStock                Code = "OUT_OF_STOCK"
	CodeInsufficientStock         Code = "INSUFFICIENT_STOCK"
	CodeInsufficientStockCheckout Code = "INSUFFICIENT_STOCK_AT_CHECKOUT"
	CodeEmptyCart                 Code = "EMPTY_CART"
)

// Metadata decides how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type flags uint8

const (
	retryable flags = 1 << iota
	withDetails
)

func meta(status int, public string, f flags) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      f&retryable != 0,
		DetailsAllowed: f&withDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:    meta(http.StatusForbidden, "access denied", 0),
	CodeNotFound:     meta(http.StatusNotFound, "resource not found", 0),
	CodeConflict:     meta(http.StatusConflict, "conflict detected", 0),
	CodeIdempotency:  meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:    meta(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInternal:     meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:   meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),

	CodeAuthRequired:              meta(http.StatusUnauthorized, "sign in to continue", 0),
	CodeProductNotFound:           meta(http.StatusNotFound, "product not found", withDetails),
	CodeOutOfStock:                meta(http.StatusConflict, "insufficient stock", withDetails),
	CodeInsufficientStock:         meta(http.StatusConflict, "insufficient stock", withDetails),
	CodeInsufficientStockCheckout: meta(http.StatusConflict, "some items are no longer available in the requested quantity", withDetails),
	CodeEmptyCart:                 meta(http.StatusBadRequest, "cart is empty", 0),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The message is for logs; clients see it only when the code allows.
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

func Wrap(code Code, err error, message string) *Error {
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

// WithDetails attaches a client-safe payload and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
