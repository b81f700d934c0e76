// Package core provides the shared HTTP response and error vocabulary used
// by all request handlers.
package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response renders itself to the HTTP response writer.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Render writes a response, logging render failures since the status line
// has usually been sent by the time they surface.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		slog.ErrorContext(r.Context(), "failed to render response", slog.Any("error", err))
	}
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 JSON response from any serializable value.
func JSON(data any) Response {
	return JSONWithStatus(http.StatusOK, data)
}

// JSONWithStatus creates a JSON response with an explicit status code.
func JSONWithStatus(status int, data any) Response {
	return jsonResponse{status: status, body: data}
}

// ErrorBody is the standard error payload shape.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSONError maps an error to a JSON error response. HTTPError and
// ValidationError carry their own status codes; anything else is an opaque
// internal error.
func JSONError(err error) Response {
	switch e := err.(type) {
	case HTTPError:
		return jsonResponse{status: e.Code, body: ErrorBody{Error: e.Key}}
	case ValidationError:
		return jsonResponse{status: http.StatusUnprocessableEntity, body: e}
	default:
		return jsonResponse{
			status: http.StatusInternalServerError,
			body:   ErrorBody{Error: "internal_server_error"},
		}
	}
}
