package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/formbridge/internal/pkg/logger"
)

// Envelope is the standard response shape for every endpoint.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// OK writes a 200 success envelope with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail writes a failure envelope with the given status and message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// ValidationFailed writes per-field validation messages. The transport
// status stays 200: the request was handled, the input was not acceptable.
func ValidationFailed(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusOK, Envelope{Success: false, Errors: errs})
}

// BadRequest writes a 400 failure envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 failure envelope.
func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, message)
}

// Denied writes the generic permission failure. The message is fixed so
// probing requests learn nothing about which resource exists.
func Denied(w http.ResponseWriter) {
	Fail(w, http.StatusUnauthorized, "permission denied")
}

// InternalError logs the real error and returns a generic message to the
// client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Fail(w, http.StatusInternalServerError, "something went wrong")
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
