package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/custodies?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/custodies?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"custody not found", domain.ErrCustodyNotFound.WithCustody("c1"), http.StatusNotFound},
		{"transaction not found", domain.ErrTransactionNotFound, http.StatusNotFound},
		{"inactive", (&domain.Custody{ID: "c1", Status: domain.CustodyStatusInactive}).EnsureActive(), http.StatusConflict},
		{"insufficient", domain.NewInsufficientBalanceError("c1", "", decimal.NewFromInt(2), decimal.NewFromInt(1)), http.StatusUnprocessableEntity},
		{"busy", domain.NewBusyError("c1", nil), http.StatusServiceUnavailable},
		{"wrapped busy", fmt.Errorf("apply: %w", domain.NewBusyError("c1", nil)), http.StatusServiceUnavailable},
		{"inconsistency", domain.NewInconsistencyError("c1", "", "drift"), http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteDomainError(t *testing.T) {
	t.Run("busy sets retry-after", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, "failed to apply transaction", domain.NewBusyError("c1", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
		if rr.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}

		var resp dto.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode error response: %v", err)
		}
		if resp.Code != "busy" || resp.CustodyID != "c1" {
			t.Fatalf("unexpected error body %+v", resp)
		}
	})

	t.Run("inconsistency keeps identifiers", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, "failed to reverse transaction", domain.NewInconsistencyError("c1", "r1", "drift"))

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}

		var resp dto.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode error response: %v", err)
		}
		if resp.Code != "ledger_inconsistency" || resp.TransactionID != "r1" {
			t.Fatalf("unexpected error body %+v", resp)
		}
	})
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad request", "detail")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error != "bad request" {
		t.Fatalf("expected error message to propagate, got %+v", resp)
	}
}
