// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used by every handler to write JSON
// bodies and the error envelope {"error": "..."}.

package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

const internalErrorMessage = "Internal server error"

// errorBody is the envelope of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Payload sets the value encoded as the response body.
func (b *JSONResponseBuilder) Payload(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write encodes the payload and sends it. An encoding failure turns into a
// plain 500 so that no partial body is ever sent.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.payload)
	status := b.statusCode
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status_code", status)
		body, _ = json.Marshal(errorBody{Error: internalErrorMessage})
		status = http.StatusInternalServerError
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Payload(v).Write(w)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Payload(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates the 404 response for an unknown route.
func NotFoundError(path string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, fmt.Sprintf("Route %s not found", path))
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(method string, allowed []string) *JSONResponseBuilder {
	b := ErrorResponse(http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", method))
	if len(allowed) > 0 {
		b.Header("Allow", strings.Join(allowed, ", "))
	}
	return b
}

// PayloadTooLargeError creates a 413 response.
func PayloadTooLargeError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large")
}

// TooManyRequestsError creates a 429 response with Retry-After.
func TooManyRequestsError(retryAfter int) *JSONResponseBuilder {
	if retryAfter <= 0 {
		retryAfter = 60
	}
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", strconv.Itoa(retryAfter))
}

// InternalServerError creates the generic 500 response; details stay in the logs.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, internalErrorMessage)
}

// ServiceUnavailableError creates a 503 response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}
