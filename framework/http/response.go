// Package http holds the JSON response helpers used by the framework's
// HTTP endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/km-arc/go-beans/framework/beans"
)

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// Fail maps a container error onto a status code:
//
//	ErrNoSuchDefinition   → 404
//	ErrValidation         → 422 with the field bag under "errors"
//	ErrDefinition         → 400
//	ErrCircularDependency → 409
//	anything else         → 500
func (res *Response) Fail(err error) {
	var verr *beans.ValidationError
	switch {
	case errors.Is(err, beans.ErrNoSuchDefinition):
		res.NotFound(err.Error())
	case errors.As(err, &verr):
		res.JSON(http.StatusUnprocessableEntity, envelope{"message": err.Error(), "errors": verr.Fields})
	case errors.Is(err, beans.ErrDefinition):
		res.Error(http.StatusBadRequest, err.Error())
	case errors.Is(err, beans.ErrCircularDependency):
		res.Error(http.StatusConflict, err.Error())
	default:
		res.ServerError(err.Error())
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
