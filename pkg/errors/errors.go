package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithHint returns a copy of the AppError carrying a non-sensitive hint for the caller.
func (e *AppError) WithHint(hint string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Hint = hint
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	// ErrUnauthorized covers bad credentials and invalid, expired, or reused
	// MFA codes. One message for all of them so callers cannot probe which
	// check failed.
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid credentials or verification code",
		StatusCode: http.StatusUnauthorized,
	}

	ErrMFARequired = &AppError{
		Code:       "MFA_REQUIRED",
		Message:    "Multi-factor verification required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrDatabaseUnavailable is surfaced only after the resilient access
	// layer has exhausted its retries.
	ErrDatabaseUnavailable = &AppError{
		Code:       "DATABASE_UNAVAILABLE",
		Message:    "Database temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewValidation reports a malformed or otherwise invalid input field.
func NewValidation(field, message string) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Field:      field,
		StatusCode: http.StatusBadRequest,
	}
}

// NewConflict reports a uniqueness violation on the given field. The hint is
// expected to be masked by the caller; the raw conflicting value must never
// reach this constructor.
func NewConflict(field, hint string) *AppError {
	return &AppError{
		Code:       "DUPLICATE_" + strings.ToUpper(field),
		Message:    fmt.Sprintf("The %s is already in use", field),
		Field:      field,
		Hint:       hint,
		StatusCode: http.StatusConflict,
	}
}

// NewExternalService wraps a failure from a collaborator such as the identity
// provider or the mail gateway.
func NewExternalService(service string, err error) *AppError {
	return &AppError{
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("The %s service is unavailable", service),
		StatusCode: http.StatusBadGateway,
		Internal:   err,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
