package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

type custodyServiceStub struct {
	createFn     func(ctx context.Context, input usecase.CreateCustodyInput) (*domain.Custody, error)
	getFn        func(ctx context.Context, id string) (*domain.Custody, error)
	listFn       func(ctx context.Context, limit, offset int) ([]*domain.Custody, error)
	topUpFn      func(ctx context.Context, custodyID string, amount decimal.Decimal) (*domain.Custody, error)
	activateFn   func(ctx context.Context, custodyID string) (*domain.Custody, error)
	deactivateFn func(ctx context.Context, custodyID string) (*domain.Custody, error)
}

func (s *custodyServiceStub) CreateCustody(ctx context.Context, input usecase.CreateCustodyInput) (*domain.Custody, error) {
	return s.createFn(ctx, input)
}

func (s *custodyServiceStub) GetCustody(ctx context.Context, id string) (*domain.Custody, error) {
	return s.getFn(ctx, id)
}

func (s *custodyServiceStub) ListCustodies(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
	return s.listFn(ctx, limit, offset)
}

func (s *custodyServiceStub) TopUp(ctx context.Context, custodyID string, amount decimal.Decimal) (*domain.Custody, error) {
	return s.topUpFn(ctx, custodyID, amount)
}

func (s *custodyServiceStub) Activate(ctx context.Context, custodyID string) (*domain.Custody, error) {
	return s.activateFn(ctx, custodyID)
}

func (s *custodyServiceStub) Deactivate(ctx context.Context, custodyID string) (*domain.Custody, error) {
	return s.deactivateFn(ctx, custodyID)
}

// withURLParam routes req through a chi context carrying key=value.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCustodyHandler_Create_Success(t *testing.T) {
	var captured usecase.CreateCustodyInput
	h := NewCustodyHandler(&custodyServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateCustodyInput) (*domain.Custody, error) {
			captured = input
			return &domain.Custody{ID: "c1", Name: input.Name, Budget: input.Budget, Remaining: input.Budget, Status: domain.CustodyStatusActive}, nil
		},
	})

	body, _ := json.Marshal(dto.CreateCustodyRequest{Name: "Warehouse", Budget: "1000"})
	req := httptest.NewRequest(http.MethodPost, "/custodies", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Name != "Warehouse" || !captured.Budget.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected input to match request, got %+v", captured)
	}

	var resp dto.CustodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "c1" || resp.Remaining != "1000" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCustodyHandler_Create_InvalidBody(t *testing.T) {
	h := NewCustodyHandler(&custodyServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateCustodyInput) (*domain.Custody, error) {
			t.Fatal("CreateCustody should not be called")
			return nil, nil
		},
	})

	for _, body := range []string{"{bad json", `{"name":"x","budget":"ten"}`} {
		req := httptest.NewRequest(http.MethodPost, "/custodies", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestCustodyHandler_Get_NotFound(t *testing.T) {
	h := NewCustodyHandler(&custodyServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Custody, error) {
			return nil, domain.ErrCustodyNotFound.WithCustody(id)
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/custodies/missing", nil), "id", "missing")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CustodyID != "missing" || resp.Code != "not_found" {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestCustodyHandler_List_PassesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	h := NewCustodyHandler(&custodyServiceStub{
		listFn: func(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
			gotLimit, gotOffset = limit, offset
			return []*domain.Custody{{ID: "c1"}, {ID: "c2"}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/custodies?limit=5&offset=10", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 5 || gotOffset != 10 {
		t.Fatalf("expected limit=5 offset=10, got %d %d", gotLimit, gotOffset)
	}

	var resp dto.ListCustodiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected count 2, got %d", resp.Count)
	}

	// The page length is not a grand total and is not reported as one.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := raw["total"]; ok {
		t.Fatalf("unexpected total field in %s", rec.Body.String())
	}
}

func TestCustodyHandler_TopUp(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{name: "success", body: `{"amount":"250"}`, wantCode: http.StatusOK},
		{name: "missing amount", body: `{}`, wantCode: http.StatusBadRequest},
		{
			name:     "inactive custody",
			body:     `{"amount":"250"}`,
			err:      (&domain.Custody{ID: "c1", Status: domain.CustodyStatusInactive}).EnsureActive(),
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCustodyHandler(&custodyServiceStub{
				topUpFn: func(ctx context.Context, custodyID string, amount decimal.Decimal) (*domain.Custody, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					if custodyID != "c1" || !amount.Equal(decimal.NewFromInt(250)) {
						t.Fatalf("unexpected top-up %s %s", custodyID, amount)
					}
					return &domain.Custody{ID: custodyID, Budget: decimal.NewFromInt(1250), Remaining: decimal.NewFromInt(1250)}, nil
				},
			})

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/custodies/c1/top-ups", bytes.NewBufferString(tt.body)), "id", "c1")
			rec := httptest.NewRecorder()

			h.TopUp(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCustodyHandler_StatusToggles(t *testing.T) {
	var calls []string
	h := NewCustodyHandler(&custodyServiceStub{
		activateFn: func(ctx context.Context, custodyID string) (*domain.Custody, error) {
			calls = append(calls, "activate:"+custodyID)
			return &domain.Custody{ID: custodyID, Status: domain.CustodyStatusActive}, nil
		},
		deactivateFn: func(ctx context.Context, custodyID string) (*domain.Custody, error) {
			calls = append(calls, "deactivate:"+custodyID)
			return &domain.Custody{ID: custodyID, Status: domain.CustodyStatusInactive}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Deactivate(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/custodies/c1/deactivate", nil), "id", "c1"))

	var resp dto.CustodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "inactive" {
		t.Fatalf("expected inactive, got %s", resp.Status)
	}

	rec = httptest.NewRecorder()
	h.Activate(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/custodies/c1/activate", nil), "id", "c1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if len(calls) != 2 || calls[0] != "deactivate:c1" || calls[1] != "activate:c1" {
		t.Fatalf("unexpected calls %v", calls)
	}
}
