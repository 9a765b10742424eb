package handlers

import (
	"errors"
	"net/http"

	"github.com/ammiranda/menutree/hierarchy"
)

// StatusFor maps the engine's error taxonomy onto HTTP status codes.
// Unclassified errors are server errors.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hierarchy.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, hierarchy.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, hierarchy.ErrTransactionAborted):
		return http.StatusConflict
	case errors.Is(err, hierarchy.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// NewErrorResponse renders err for a client. Server errors hide their details.
func NewErrorResponse(err error) ErrorResponse {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	switch {
	case errors.Is(err, hierarchy.ErrTransactionAborted):
		resp.Retryable = true
	case errors.Is(err, hierarchy.ErrStoreUnavailable):
		resp.Retryable = true
	case status == http.StatusInternalServerError:
		resp.Error = "internal server error"
	}
	return resp
}
