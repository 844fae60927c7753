package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a business failure in a machine-readable way.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeProductUnavailable Code = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeMissingAddress     Code = "MISSING_SHIPPING_ADDRESS"
	CodeAddressNotFound    Code = "ADDRESS_NOT_FOUND"
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeOrderNotPayable    Code = "ORDER_NOT_FOUND_OR_PROCESSED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is a typed application error. Services return these unchanged; the
// HTTP layer maps Status and Code into the response envelope.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an error with an explicit status.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, status int, format string, args ...interface{}) *Error {
	return New(code, status, fmt.Sprintf(format, args...))
}

func Validation(message string) *Error {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func ProductUnavailable() *Error {
	return New(CodeProductUnavailable, http.StatusBadRequest, "one or more products are not available")
}

func InsufficientStock(productName string) *Error {
	return Newf(CodeInsufficientStock, http.StatusBadRequest, "insufficient stock for %s", productName)
}

func MissingShippingAddress() *Error {
	return New(CodeMissingAddress, http.StatusBadRequest, "a shipping address is required")
}

func AddressNotFound() *Error {
	return New(CodeAddressNotFound, http.StatusNotFound, "address not found")
}

func OrderNotFound() *Error {
	return New(CodeOrderNotFound, http.StatusNotFound, "order not found")
}

func OrderNotPayable() *Error {
	return New(CodeOrderNotPayable, http.StatusNotFound, "order not found or already processed")
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func InvalidSignature() *Error {
	return New(CodeInvalidSignature, http.StatusBadRequest, "invalid webhook signature")
}

// FromError returns the typed error inside err, or a generic internal error.
// Internal details never reach the client; callers log err before mapping.
func FromError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(CodeInternal, http.StatusInternalServerError, "internal server error")
}

// Is reports whether err is an application error with the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
