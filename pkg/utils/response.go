// Package utils provides common utility functions for HTTP response handling,
// request ID management, and cookie operations. It includes standardized response
// formats with automatic request ID injection for distributed tracing.
package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// requestIDKey is the context key for request ID
const requestIDKey contextKey = "request_id"

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if the context is nil or no request ID is present.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context for distributed tracing.
// This is typically called by middleware to inject a unique identifier for each request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse represents a standard error response structure.
// It includes the HTTP status text, a custom message, and a request ID for tracing.
// The optional Field identifies which form field a validation error refers to.
type ErrorResponse struct {
	Error     string `json:"error"`                // HTTP status text (e.g., "Bad Request")
	Message   string `json:"message,omitempty"`    // Detailed error message
	Field     string `json:"field,omitempty"`      // Offending field for validation errors
	RequestID string `json:"request_id,omitempty"` // Request ID for distributed tracing
}

// SuccessResponse represents a standard success response structure.
// It wraps response data with an optional message and request ID.
type SuccessResponse struct {
	Data      interface{} `json:"data,omitempty"`       // Response payload
	Message   string      `json:"message,omitempty"`    // Optional success message
	RequestID string      `json:"request_id,omitempty"` // Request ID for distributed tracing
}

// RespondWithError sends a JSON error response with automatic request ID extraction.
//
// Example:
//
//	if product == nil {
//	    utils.RespondWithError(w, r, http.StatusNotFound, "Produto não encontrado")
//	    return
//	}
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	})
}

// RespondWithFieldError sends a JSON error response for a validation failure,
// identifying the offending form field so clients can surface it locally.
//
// Example:
//
//	utils.RespondWithFieldError(w, r, http.StatusUnprocessableEntity, "quantidade", "Quantidade inválida")
func RespondWithFieldError(w http.ResponseWriter, r *http.Request, statusCode int, field, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Field:     field,
		RequestID: GetRequestID(r.Context()),
	})
}

// RespondWithJSON sends a JSON response with the given status code and data.
// The request ID is automatically extracted from the request context.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// RespondWithSuccess sends a standardized success response with HTTP 200 status.
// The data is wrapped in a SuccessResponse structure with automatic request ID.
func RespondWithSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: GetRequestID(r.Context()),
	})
}

// RespondWithMessage sends a simple message response with the given status code.
// Useful for endpoints that only need to return a status message.
func RespondWithMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := map[string]string{"message": message}
	if requestID := GetRequestID(r.Context()); requestID != "" {
		response["request_id"] = requestID
	}
	writeJSON(w, statusCode, response)
}

// writeJSON serializes data to the response writer with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// SetAuthCookie sets an authentication cookie with appropriate security settings.
// In production, the cookie is marked as Secure (HTTPS only). The cookie is always
// HttpOnly and uses SameSite=Lax for CSRF protection.
//
// Example:
//
//	utils.SetAuthCookie(w, "access_token", token, time.Now().Add(15*time.Minute), true)
func SetAuthCookie(w http.ResponseWriter, name, value string, expires time.Time, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearAuthCookie clears a specific authentication cookie by setting MaxAge to -1.
// This instructs the browser to immediately delete the cookie.
func ClearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// ClearAllAuthCookies clears multiple authentication cookies at once.
// Useful during logout to clear all session-related cookies.
func ClearAllAuthCookies(w http.ResponseWriter, cookieNames []string) {
	for _, name := range cookieNames {
		ClearAuthCookie(w, name)
	}
}
