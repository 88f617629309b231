package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddlewareLevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		want   zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNoContent, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}

	for _, tc := range cases {
		core, logs := observer.New(zapcore.DebugLevel)
		handler := middleware.RequestID(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/gifts/list", nil))

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("status %d: expected 1 entry, got %d", tc.status, len(entries))
		}
		if entries[0].Level != tc.want {
			t.Errorf("status %d: expected level %s, got %s", tc.status, tc.want, entries[0].Level)
		}
		fields := entries[0].ContextMap()
		if fields["status"] != int64(tc.status) {
			t.Errorf("status %d: logged status %v", tc.status, fields["status"])
		}
		if fields["request_id"] == "" {
			t.Errorf("status %d: missing request id", tc.status)
		}
	}
}

func TestLoggingMiddlewareDefaultsImplicitStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("expected implicit 200, got %v", got)
	}
}
