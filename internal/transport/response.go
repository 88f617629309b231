package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"giftlist/internal/giftlist"
	"giftlist/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func respondStatus(w http.ResponseWriter, code int, msg string) {
	middleware.RespondWithStatus(w, code, msg)
}

// respondQuery writes payload with 200, or 204 when it encodes to an empty
// value such as null, [] or {}.
func respondQuery(w http.ResponseWriter, logger *zap.Logger, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		respondStatus(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	switch string(body) {
	case "null", "[]", "{}", `""`:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// statusError is a failure whose status the handler already knows, such as
// a malformed path or query parameter.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &statusError{code: http.StatusBadRequest, msg: msg}
}

func unauthorized() error {
	return &statusError{code: http.StatusUnauthorized, msg: "unauthorized"}
}

// classifier picks the status and client message for an error a handler
// returned. Messages of 5xx answers must not leak internals.
type classifier func(error) (int, string)

// queryHandler is an HTTP handler that reports failure by returning it.
type queryHandler func(w http.ResponseWriter, r *http.Request) error

// safeQuery adapts fn to an http.HandlerFunc. A returned error is written
// as a status envelope: statusErrors and request body failures as they
// are, anything else through classify. A panic is logged and answered 500.
func safeQuery(logger *zap.Logger, classify classifier, fn queryHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("Handler panicked",
				zap.Any("panic", rec),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Stack("stack"),
			)
			respondStatus(w, http.StatusInternalServerError, "internal server error")
		}()

		if err := fn(w, r); err != nil {
			respondError(w, r, logger, classify, err)
		}
	}
}

func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, classify classifier, err error) {
	var se *statusError
	if errors.As(err, &se) {
		respondStatus(w, se.code, se.msg)
		return
	}
	if errors.Is(err, middleware.ErrMalformedBody) || len(middleware.FormatValidationErrors(err)) > 0 {
		logger.Debug("Request body rejected", zap.String("path", r.URL.Path), zap.Error(err))
		decodeFailed(w, err)
		return
	}

	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondStatus(w, code, msg)
}

// giftStatus maps gift list failures by kind.
func giftStatus(err error) (int, string) {
	switch giftlist.KindOf(err) {
	case giftlist.KindValidation:
		return http.StatusBadRequest, err.Error()
	case giftlist.KindNotFound:
		return http.StatusNotFound, err.Error()
	case giftlist.KindConflict:
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// queryInt reads an integer query parameter, returning fallback when it is
// absent.
func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func decodeFailed(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	respondStatus(w, http.StatusBadRequest, "invalid request body")
}
