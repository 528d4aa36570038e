package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
	"github.com/utafrali/DeliveryGo/pkg/logger"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError maps err to a status code and error envelope. AppErrors keep their
// code and message; anything else is reported as an internal error and logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error, l *slog.Logger) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeValidation(w, valErr, requestID)
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(r, err, l)
		}
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code, message = "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, apperrors.ErrValidation):
		code, message = "VALIDATION_ERROR", err.Error()
	case errors.Is(err, apperrors.ErrPermissionDenied):
		code, message = "PERMISSION_DENIED", "not enough permissions"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		code, message = "INVALID_CREDENTIALS", "could not validate credentials"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		code, message = "INVALID_TRANSITION", err.Error()
	}

	if status == http.StatusInternalServerError {
		logInternal(r, err, l)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

func logInternal(r *http.Request, err error, l *slog.Logger) {
	logger.WithContext(r.Context(), l).ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a 400 response for a decode or validation failure.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeValidation(w, valErr, requestID)
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error(), RequestID: requestID},
	})
}

func writeValidation(w http.ResponseWriter, valErr *validator.ValidationError, requestID string) {
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   "request validation failed",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		},
	})
}

// ParseUUID parses a path parameter. On failure it writes a 400 response and
// returns false so the caller can return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

// ParseOptionalUUID validates an optional UUID query value. An empty value is
// returned as is; a malformed one gets the same 400 as ParseUUID.
func ParseOptionalUUID(w http.ResponseWriter, value string) (string, bool) {
	if value == "" {
		return "", true
	}
	id, ok := ParseUUID(w, value)
	if !ok {
		return "", false
	}
	return id.String(), true
}
