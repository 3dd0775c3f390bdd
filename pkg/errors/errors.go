package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrRateLimited        = errors.New("rate limited")
	ErrSessionExpired     = errors.New("session expired")
	ErrCancelled          = errors.New("request cancelled")
)

// Business-rule rejections raised before or during a payment attempt
var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrNoAddress         = errors.New("no saved shipping address")
	ErrNoAddressSelected = errors.New("no shipping address selected")
	ErrInvalidPIN        = errors.New("invalid wallet PIN")
	ErrNoCourierSelected = errors.New("no courier selected")
	ErrNotPayable        = errors.New("item is not awaiting payment")
	ErrInvalidTransition = errors.New("invalid payment state transition")
	ErrTooFewPackages    = errors.New("at least two packages are required")
)

// AppError represents a structured application error with context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Fields     map[string][]string
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// FieldError returns the first message recorded for field, if any
func (e *AppError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrTemporaryFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsCancelled reports whether err is the result of a cancelled or superseded request
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// FieldErrors extracts per-field validation messages from err
func FieldErrors(err error) map[string][]string {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewInvalidInputError creates an invalid input error
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, false)
}

// NewValidationError creates an invalid input error carrying field errors
func NewValidationError(message string, fields map[string][]string) *AppError {
	e := NewInvalidInputError(message)
	e.Fields = fields
	return e
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, false)
}

// NewSessionExpiredError creates the error returned when a 401 ended the session
func NewSessionExpiredError(message string) *AppError {
	return NewAppError(ErrSessionExpired, message, http.StatusUnauthorized, false)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrForbidden, message, http.StatusForbidden, false)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, false)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// NewTemporaryError creates a temporary error
func NewTemporaryError(message string) *AppError {
	return NewAppError(ErrTemporaryFailure, message, http.StatusServiceUnavailable, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, true)
}

// NewCancelledError creates the error returned for an aborted request
func NewCancelledError(message string) *AppError {
	return NewAppError(ErrCancelled, message, 0, false)
}

// NewBusinessError wraps a business-rule sentinel with a user-facing message
func NewBusinessError(err error, message string) *AppError {
	return NewAppError(err, message, http.StatusUnprocessableEntity, false)
}

// ContextStatus is the context key holding the HTTP status an error was
// built from
const ContextStatus = "status"

// ResponseStatus returns the HTTP status a remote API answered with, if err
// came from an API response rather than the transport
func ResponseStatus(err error) (int, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return 0, false
	}

	status, ok := appErr.Context[ContextStatus].(int)
	return status, ok
}

// FromResponse normalises a non-2xx API response into an AppError.
// The remote API reports errors either as {"detail": "..."}, {"error": "..."},
// {"message": "..."} or as a map of field name to message list.
func FromResponse(statusCode int, body []byte) *AppError {
	message, fields := parseErrorBody(body)

	switch {
	case statusCode == http.StatusBadRequest:
		if message == "" {
			message = summarizeFields(fields)
		}
		if message == "" {
			message = "invalid request"
		}
		return NewValidationError(message, fields)
	case statusCode == http.StatusUnauthorized:
		return NewUnauthorizedError(orDefault(message, "authentication required"))
	case statusCode == http.StatusForbidden:
		return NewForbiddenError(orDefault(message, "forbidden"))
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(orDefault(message, "not found"))
	case statusCode == http.StatusConflict:
		return NewConflictError(orDefault(message, "conflict"))
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitedError(orDefault(message, "too many requests"))
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return NewTimeoutError(orDefault(message, "request timed out"))
	case statusCode == http.StatusServiceUnavailable:
		return NewTemporaryError(orDefault(message, "service unavailable"))
	case statusCode >= 500:
		e := NewInternalError(orDefault(message, fmt.Sprintf("server error: %d", statusCode)))
		e.StatusCode = statusCode
		return e
	default:
		e := NewAppError(ErrInvalidInput, orDefault(message, fmt.Sprintf("request failed: %d", statusCode)), statusCode, false)
		e.Fields = fields
		return e
	}
}

func parseErrorBody(body []byte) (string, map[string][]string) {
	if len(body) == 0 {
		return "", nil
	}

	var raw map[string]json.RawMessage

	if err := json.Unmarshal(body, &raw); err != nil {
		return strings.TrimSpace(string(body)), nil
	}

	var message string
	fields := make(map[string][]string)

	for key, value := range raw {
		switch key {
		case "detail", "error", "message":
			var s string
			if err := json.Unmarshal(value, &s); err == nil && message == "" {
				message = s
				continue
			}
		}

		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[key] = list
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[key] = []string{s}
		}
	}

	if len(fields) == 0 {
		fields = nil
	}

	return message, fields
}

func summarizeFields(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(fields[k], " ")))
	}
	return strings.Join(parts, "; ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
