package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxJSONBody caps request bodies accepted by DecodeJSON.
const maxJSONBody = 1 << 20

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RespondJSON writes data as JSON with the given status code
func RespondJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response and logs it when a logger is given
func RespondError(w http.ResponseWriter, statusCode int, message string, details string, logger *slog.Logger) {
	if logger != nil {
		logger.Error("responding with error",
			"status_code", statusCode,
			"message", message,
			"details", details,
		)
	}

	RespondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Details: details,
	})
}

// RespondSuccess writes a success envelope
func RespondSuccess(w http.ResponseWriter, statusCode int, message string, data map[string]any) {
	RespondJSON(w, statusCode, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondInternalError is a helper for 500 errors. The error is logged but
// never echoed to the client.
func RespondInternalError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Error("internal server error", "error", err)
	}

	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal Server Error",
		Message: "An unexpected error occurred",
	})
}

// RespondBadRequest is a helper for 400 errors
func RespondBadRequest(w http.ResponseWriter, message string, details string) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Bad Request",
		Message: message,
		Details: details,
	})
}

// RespondNotFound is a helper for 404 errors
func RespondNotFound(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "Not Found",
		Message: message,
	})
}

// RespondUnauthorized is a helper for 401 errors
func RespondUnauthorized(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
	})
}

// RespondForbidden is a helper for 403 errors
func RespondForbidden(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusForbidden, ErrorResponse{
		Error:   "Forbidden",
		Message: message,
	})
}

// RespondConflict is a helper for 409 errors
func RespondConflict(w http.ResponseWriter, message string, details string) {
	RespondJSON(w, http.StatusConflict, ErrorResponse{
		Error:   "Conflict",
		Message: message,
		Details: details,
	})
}

// RespondValidationError is a helper for validation errors (422)
func RespondValidationError(w http.ResponseWriter, errs map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":   "Validation Failed",
		"message": "One or more fields failed validation",
		"errors":  errs,
	})
}

// RespondCreated is a helper for 201 responses
func RespondCreated(w http.ResponseWriter, message string, data map[string]any) {
	RespondSuccess(w, http.StatusCreated, message, data)
}

// RespondNoContent is a helper for 204 responses (no body)
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a size-limited JSON request body into v, rejecting
// unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
