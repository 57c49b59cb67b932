// Package errors maps domain errors onto HTTP error responses.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/3leaps/benchline/pkg/artifact"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/lifecycle"
	"github.com/3leaps/benchline/pkg/pipeline"
)

// Error codes used in response bodies.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeIntegrity          = "INTEGRITY_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// HTTPError is the body of every error response.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// BadRequestError marks invalid client input.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func BadRequest(msg string) error { return &BadRequestError{Message: msg} }

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	var bad *BadRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, jobstore.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, lifecycle.ErrReadOnly),
		errors.Is(err, lifecycle.ErrStatusChanged),
		errors.Is(err, jobstore.ErrNotPending):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, pipeline.ErrDanglingDependency),
		errors.Is(err, pipeline.ErrMissingDependency),
		errors.Is(err, pipeline.ErrInvalidDependency):
		return http.StatusUnprocessableEntity, CodeIntegrity
	case errors.Is(err, artifact.ErrProviderUnavailable), errors.Is(err, artifact.ErrThrottled):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// RespondWithError writes err as a JSON error response. Internal errors do
// not leak their message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	Write(w, r, status, HTTPError{Code: code, Message: msg})
}

// Write sends an error body with the given status, stamping the request id.
func Write(w http.ResponseWriter, r *http.Request, status int, body HTTPError) {
	if body.RequestID == "" && r != nil {
		body.RequestID = middleware.GetReqID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusNotFound, HTTPError{Code: CodeNotFound, Message: "route not found"})
}

// MethodNotAllowedHandler answers known routes with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusMethodNotAllowed, HTTPError{Code: CodeMethodNotAllowed, Message: "method not allowed"})
}
