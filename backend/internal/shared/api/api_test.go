package apicommon

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cheesecave/backend/internal/shared/types"
	"cheesecave/backend/pkg/utils"
)

type invokeBody struct {
	Payload string `json:"payload"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "valid", body: `{"payload":"on"}`},
		{name: "empty", body: "", wantStatus: http.StatusBadRequest, wantMsg: "Request body is empty"},
		{name: "syntax", body: `{"payload":}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid JSON syntax"},
		{name: "wrong type", body: `{"payload":1}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid type for field 'payload'"},
		{name: "unknown field", body: `{"pay":"on"}`, wantStatus: http.StatusBadRequest, wantMsg: "unknown field"},
		{name: "two objects", body: `{"payload":"on"}{"payload":"off"}`, wantStatus: http.StatusBadRequest, wantMsg: "multiple JSON objects"},
		{name: "too large", body: `{"payload":"` + strings.Repeat("x", MaxBodySize) + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantMsg: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			got, err := DecodeJSON[invokeBody](r)
			if tt.wantStatus == 0 {
				if err != nil {
					t.Fatalf("DecodeJSON() error = %v", err)
				}

				if got.Payload != "on" {
					t.Errorf("Payload = %q, want on", got.Payload)
				}

				return
			}

			var httpErr *types.ErrorResponse
			if !errors.As(err, &httpErr) {
				t.Fatalf("DecodeJSON() error = %v, want *types.ErrorResponse", err)
			}

			if httpErr.StatusCode != tt.wantStatus || !strings.Contains(httpErr.Message, tt.wantMsg) {
				t.Errorf("error = %d %q, want %d containing %q", httpErr.StatusCode, httpErr.Message, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func newTestMux(h http.Handler) http.Handler {
	mw := NewMiddlewareHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	return mw.RequestIDMiddleware(mw.LoggerMiddleware(mw.RecoveryMiddleware(h)))
}

func TestErrorHandlerReturnsRequestID(t *testing.T) {
	t.Parallel()

	h := newTestMux(ErrorHandler(func(http.ResponseWriter, *http.Request) error {
		return NewError(http.StatusNotFound, "Device not found")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "req-1")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	got, err := utils.FromJSON[types.ErrorResponse](w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.RequestID != "req-1" || got.Message != "Device not found" {
		t.Errorf("body = %+v, want requestID req-1 and message Device not found", got)
	}

	if w.Header().Get(RequestIDHeader) != "req-1" {
		t.Errorf("%s = %q, want req-1", RequestIDHeader, w.Header().Get(RequestIDHeader))
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	t.Parallel()

	h := newTestMux(ErrorHandler(func(http.ResponseWriter, *http.Request) error {
		return errors.New("broker exploded")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	if strings.Contains(w.Body.String(), "broker exploded") {
		t.Errorf("body leaks internal error: %s", w.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	h := newTestMux(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("generated request ID missing")
	}
}
