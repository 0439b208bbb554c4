package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: buf})
}

func TestRequestIDPropagatesHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := bufferLogger(buf)
	handler := RequestID(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logg.Info(r.Context(), "inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-abc" {
		t.Fatalf("expected echoed request id got %q", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-abc"`) {
		t.Fatalf("expected request id in log, got %s", buf.String())
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDBytes+1))
	rec := httptest.NewRecorder()
	RequestID(nil)(okHandler()).ServeHTTP(rec, req)

	got := rec.Header().Get(RequestIDHeader)
	if got == "" || len(got) > maxRequestIDBytes {
		t.Fatalf("expected minted request id got %q", got)
	}
}

func TestRequestIDRejectsControlCharacters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc def")
	rec := httptest.NewRecorder()
	RequestID(nil)(okHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got == "abc def" {
		t.Fatalf("expected minted request id, got %q", got)
	}
}

func TestRequestIDReachesErrorEnvelope(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "redis down"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-xyz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"request_id":"req-xyz"`) || !strings.Contains(body, `"retryable":true`) {
		t.Fatalf("unexpected error body %s", body)
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(bufferLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/x", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected warn entry with status, got %s", out)
	}
	if !strings.Contains(out, `"bytes":7`) {
		t.Fatalf("expected byte count, got %s", out)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Recoverer(bufferLogger(buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil cart")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "nil cart") {
		t.Fatalf("panic value leaked to client: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "panic.recovered") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}

func TestRecovererRepanicsAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
