// Package response writes the JSON envelope shared by all control API
// endpoints.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"aspos-sync/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   *apierror.Error `json:"error,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON sends a successful JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// Failure sends an error response that still carries data, such as the
// result of a failed sync stage.
func Failure(w http.ResponseWriter, apiErr *apierror.Error, data interface{}) {
	write(w, apiErr.StatusCode, Response{Success: false, Data: data, Error: apiErr})
}

// Error sends an error response. Errors that are not *apierror.Error are
// reported as 500 without exposing their text.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.InternalError("an unexpected error occurred")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	w.Write(apiErr.ToJSON())
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Accepted sends a 202 Accepted response for queued work.
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}
