// Package errors defines the typed error values surfaced by the API. Every
// error carries a stable machine code and the HTTP status it should map to,
// so handlers never have to inspect error text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error with a stable code and HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a fresh Error value.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap annotates err with a code, status and message while keeping the
// original error reachable through Unwrap.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic request failures.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Money and marks specific failures.
var (
	// ErrConfigMissing marks required reference data that is absent, such
	// as a class fee schedule or an active salary definition.
	ErrConfigMissing = New("CONFIG_MISSING", http.StatusPreconditionFailed, "required configuration missing")
	// ErrOverpayment rejects payments exceeding the outstanding balance.
	ErrOverpayment = New("OVERPAYMENT", http.StatusBadRequest, "payment exceeds outstanding balance")
	// ErrPeriodNotClosed rejects payroll runs for the current or a future month.
	ErrPeriodNotClosed = New("PERIOD_NOT_CLOSED", http.StatusBadRequest, "payroll period is not closed yet")
	// ErrAlreadySettled marks a payroll period whose balance is already zero.
	ErrAlreadySettled = New("ALREADY_SETTLED", http.StatusConflict, "period is already fully settled")
	// ErrCacheMiss signals a cache lookup without a stored value.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError coerces any error into an *Error. Unknown errors become
// internal server errors.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies a sentinel so callers can override the message without
// mutating the shared value.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	copied := *err
	if message != "" {
		copied.Message = message
	}
	return &copied
}
