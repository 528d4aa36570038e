package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of these so callers can
// branch with errors.Is without caring about the message.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrValidation         = errors.New("validation failed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInactive           = errors.New("inactive user")
	ErrInternal           = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// Validation creates a 400 error for malformed input.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// PermissionDenied creates a 400 error for an authenticated actor that is
// not allowed to touch the resource.
func PermissionDenied(message string) *AppError {
	return &AppError{
		Code:    "PERMISSION_DENIED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrPermissionDenied,
	}
}

// InvalidCredentials creates a 403 error for failed authentication.
func InvalidCredentials(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrInvalidCredentials,
	}
}

// InvalidTransition creates a 400 error for a rejected order status change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot change order status from %s to %s", from, to),
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidTransition,
	}
}

// Inactive creates a 400 error for a disabled account.
func Inactive() *AppError {
	return &AppError{
		Code:    "INACTIVE_USER",
		Message: "inactive user",
		Status:  http.StatusBadRequest,
		Err:     ErrInactive,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInactive):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
