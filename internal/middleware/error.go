package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// StatusResponse is the body of every response that carries no resource:
// success and failure messages alike. Status is "ok" below 400 and "error"
// from 400 up, and Code repeats the HTTP status.
type StatusResponse struct {
	Msg    string            `json:"msg"`
	Status string            `json:"status"`
	Code   int               `json:"code"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewStatusResponse builds the envelope for code.
func NewStatusResponse(code int, msg string) StatusResponse {
	status := "ok"
	if code >= http.StatusBadRequest {
		status = "error"
	}
	return StatusResponse{Msg: msg, Status: status, Code: code}
}

// RespondWithStatus writes the envelope for code and msg.
func RespondWithStatus(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, NewStatusResponse(code, msg))
}

// RespondWithValidationErrors writes a 400 envelope listing each rejected field.
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	resp := NewStatusResponse(http.StatusBadRequest, "validation failed")
	resp.Errors = errors
	RespondWithJSON(w, http.StatusBadRequest, resp)
}

// ErrorHandlingMiddleware turns a panicking handler into a 500 envelope.
// http.ErrAbortHandler is re-raised so the server drops the connection.
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				RespondWithStatus(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
