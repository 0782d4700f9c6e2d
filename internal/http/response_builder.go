// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It maps planning errors and mutation outcomes onto status codes in one
// place so every handler answers the same way.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fleemy/internal/core"
	"fleemy/internal/planning"
	"fleemy/internal/planning/remote"
)

// NoticeHeader carries the controller notice that a client should display.
const NoticeHeader = "X-Fleemy-Notice"

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
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

// Notice forwards a user-facing message. Empty messages are ignored.
func (b *JSONResponseBuilder) Notice(msg string) *JSONResponseBuilder {
	if msg != "" {
		b.headers[NoticeHeader] = msg
	}
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status the response will be written with.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates an error response in the planning API error shape.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(remote.ErrorDTO{Detail: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError creates a 429 response with a Retry-After hint.
func TooManyRequestsError(retryAfter int) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", strconv.Itoa(retryAfter))
}

// FromError maps a planning error onto a response. Unknown errors are not
// echoed to the client.
func FromError(err error) *JSONResponseBuilder {
	switch {
	case err == nil:
		return NewJSONResponse().Status(http.StatusNoContent)
	case core.IsValidation(err):
		return UnprocessableEntityError(err.Error())
	case core.IsNotFound(err):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrMutationInFlight):
		return ConflictError(err.Error())
	case core.IsNetwork(err):
		return ErrorResponse(http.StatusServiceUnavailable, "planning backend unreachable")
	default:
		return InternalServerError("internal error")
	}
}

// MutationResponse answers a controller mutation. Synced changes get
// synced, queued ones 202 Accepted, rolled back ones the mapped error.
func MutationResponse[T any](m planning.Mutation[T], err error, synced int, body any) *JSONResponseBuilder {
	if err != nil {
		return FromError(err)
	}
	switch m.Outcome {
	case planning.PendingSync:
		return NewJSONResponse().Status(http.StatusAccepted).Body(body)
	case planning.RolledBack:
		return FromError(m.Err)
	}
	if body == nil {
		return NewJSONResponse().Status(http.StatusNoContent)
	}
	return NewJSONResponse().Status(synced).Body(body)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}
