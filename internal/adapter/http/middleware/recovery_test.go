package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/custodyledger/internal/domain"
)

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	var logs bytes.Buffer
	handler := Recovery(zerolog.New(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/custodies", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %q", logs.String())
	}
}

func TestRequestContext_PropagatesIdentifiers(t *testing.T) {
	var gotActor, gotRequestID string

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestContext)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		gotActor = domain.ActorFromContext(r.Context())
		gotRequestID = domain.RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "alice")
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if gotActor != "alice" || gotRequestID != "req-42" {
		t.Fatalf("unexpected identifiers actor=%q request_id=%q", gotActor, gotRequestID)
	}
	if rr.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", rr.Header().Get(RequestIDHeader))
	}
}

func TestRequestContext_DefaultsActor(t *testing.T) {
	var gotActor string
	handler := RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = domain.ActorFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if gotActor != "system" {
		t.Fatalf("expected system actor, got %q", gotActor)
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusUnprocessableEntity, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		var logs bytes.Buffer
		mw := NewLoggingMiddleware(zerolog.New(&logs))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/custodies/c1/transactions", nil)
		req = req.WithContext(domain.WithRequestID(context.Background(), "req-1"))
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})).ServeHTTP(httptest.NewRecorder(), req)

		var entry map[string]any
		if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
			t.Fatalf("decode log entry: %v", err)
		}
		if entry["level"] != tt.level || entry["request_id"] != "req-1" {
			t.Fatalf("status %d: unexpected entry %v", tt.status, entry)
		}
		if int(entry["status"].(float64)) != tt.status {
			t.Fatalf("status %d: unexpected status field %v", tt.status, entry["status"])
		}
	}
}
