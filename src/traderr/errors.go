package traderr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the four caller-visible families.
type Kind string

const (
	KindValidation Kind = "validation"
	KindLimit      Kind = "limit_exceeded"
	KindExecution  Kind = "execution_failure"
	KindConflict   Kind = "consistency_conflict"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "invalid_state"
)

// Code is the machine-readable reason reported to callers.
type Code string

const (
	CodeInvalidQuantity      Code = "InvalidQuantity"
	CodeMissingPrice         Code = "MissingPrice"
	CodeBelowMinimumTrade    Code = "BelowMinimumTrade"
	CodeDailyLimitExceeded   Code = "DailyLimitExceeded"
	CodeInsufficientBalance  Code = "InsufficientBalance"
	CodeInsufficientPosition Code = "InsufficientPosition"
	CodeAssetNotFound        Code = "AssetNotFound"
	CodeNotFound             Code = "NotFound"
	CodeInvalidState         Code = "InvalidState"
	CodeExecutionFailed      Code = "ExecutionFailed"
	CodeConflict             Code = "ConsistencyConflict"
)

// Error carries a machine-readable code plus a human message. Validation
// and limit errors are rejected before any persistence; execution failures
// mark the order failed without touching the ledger; conflicts are retried
// internally and only surface once retries are exhausted.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match on code identity so callers can compare against
// the sentinel constructors without caring about messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidQuantity(format string, args ...interface{}) *Error {
	return newError(KindValidation, CodeInvalidQuantity, format, args...)
}

func MissingPrice(format string, args ...interface{}) *Error {
	return newError(KindValidation, CodeMissingPrice, format, args...)
}

func BelowMinimumTrade(format string, args ...interface{}) *Error {
	return newError(KindLimit, CodeBelowMinimumTrade, format, args...)
}

func DailyLimitExceeded(format string, args ...interface{}) *Error {
	return newError(KindLimit, CodeDailyLimitExceeded, format, args...)
}

func InsufficientBalance(format string, args ...interface{}) *Error {
	return newError(KindLimit, CodeInsufficientBalance, format, args...)
}

func InsufficientPosition(format string, args ...interface{}) *Error {
	return newError(KindLimit, CodeInsufficientPosition, format, args...)
}

func AssetNotFound(symbol string) *Error {
	return newError(KindNotFound, CodeAssetNotFound, "asset %s not found or not tradeable", symbol)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, CodeNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newError(KindState, CodeInvalidState, format, args...)
}

func ExecutionFailed(cause error, format string, args ...interface{}) *Error {
	e := newError(KindExecution, CodeExecutionFailed, format, args...)
	e.cause = cause
	return e
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, CodeConflict, format, args...)
}

// CodeOf extracts the code from any error in the chain, or empty.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a bad-input rejection.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsLimit reports whether err is a limit rejection (daily count, notional,
// balance, position size).
func IsLimit(err error) bool { return kindOf(err) == KindLimit }

// IsConflict reports whether err is a retryable consistency conflict.
func IsConflict(err error) bool { return kindOf(err) == KindConflict }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status a handler should write.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindLimit:
		if e.Code == CodeDailyLimitExceeded {
			return http.StatusTooManyRequests
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	case KindConflict:
		return http.StatusServiceUnavailable
	case KindExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
