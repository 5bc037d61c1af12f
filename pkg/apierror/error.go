// Package apierror defines the error bodies of the control API.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ToJSON converts the error to the response envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   *Error `json:"error"`
	}{false, e})
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// FromValidation converts validator failures into a ValidationError. Other
// errors become a plain BadRequest.
func FromValidation(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest(err.Error())
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		details = append(details, FieldError{Field: strings.ToLower(fe.Field()), Message: msg})
	}
	return ValidationError("request validation failed", details...)
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return &Error{StatusCode: http.StatusConflict, Code: "CONFLICT", Message: message}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}
}

// BadGateway creates a 502 error for a failed upstream sync.
func BadGateway(message string) *Error {
	return &Error{StatusCode: http.StatusBadGateway, Code: "UPSTREAM_FAILED", Message: message}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE", Message: message}
}
