package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caravan-llm/caravan/internal/logger"
	"github.com/caravan-llm/caravan/theme"
)

func newTestLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

func TestLoggingMiddleware_AssignsRequestID(t *testing.T) {
	var seenID string
	handler := LoggingMiddleware(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if seenID == "" {
		t.Fatal("expected request ID in handler context")
	}
	if rec.Header().Get(HeaderRequestID) != seenID {
		t.Errorf("expected echoed header %q, got %q", seenID, rec.Header().Get(HeaderRequestID))
	}
}

func TestLoggingMiddleware_HonoursIncomingRequestID(t *testing.T) {
	var seenID string
	handler := LoggingMiddleware(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set(HeaderRequestID, "dromedary_crossing_beef")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenID != "dromedary_crossing_beef" {
		t.Errorf("expected client-supplied ID preserved, got %q", seenID)
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	wrapped.WriteHeader(http.StatusTeapot)
	_, _ = wrapped.Write([]byte("short and stout"))

	if wrapped.status != http.StatusTeapot {
		t.Errorf("expected captured status 418, got %d", wrapped.status)
	}
	if wrapped.size != int64(len("short and stout")) {
		t.Errorf("expected captured size %d, got %d", len("short and stout"), wrapped.size)
	}
}
