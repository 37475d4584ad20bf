package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/stats"
)

// --- モック定義 ---

type mockBillingService struct {
	listFn   func(ctx context.Context, p model.Principal, filter model.BillingFilter) ([]*model.Billing, error)
	createFn func(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error)
	updateFn func(ctx context.Context, p model.Principal, id string, patch model.BillingPatch) (*model.Billing, error)
	cancelFn func(ctx context.Context, p model.Principal, id string) (*model.Billing, error)
	deleteFn func(ctx context.Context, p model.Principal, id string) (*model.Billing, error)
	statsFn  func(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error)
}

func (m *mockBillingService) List(ctx context.Context, p model.Principal, filter model.BillingFilter) ([]*model.Billing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, p, filter)
	}
	return nil, nil
}

func (m *mockBillingService) Create(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBillingService) Update(ctx context.Context, p model.Principal, id string, patch model.BillingPatch) (*model.Billing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p, id, patch)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBillingService) Cancel(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, p, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBillingService) Delete(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBillingService) Stats(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, p, period)
	}
	return stats.BillingStats{}, nil
}

// --- テスト ---

func TestBillingHandler_Create_Returns201(t *testing.T) {
	var got model.NewBilling
	svc := &mockBillingService{
		createFn: func(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error) {
			got = in
			b := in.Build("b-1", time.Now())
			b.UserID = p.UserID
			return b, nil
		},
	}
	h := NewBillingHandler(svc)

	req := withPrincipal(jsonRequest(t, http.MethodPost, "/api/billing", map[string]any{
		"contractNumber": "C-001",
		"clientName":     "ACME",
		"value":          "1000",
		"issueDate":      "2025-03-01",
		"dueDate":        "2025-03-31",
	}), userPrincipal)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Status != "" {
		t.Errorf("status input = %q, want empty", got.Status)
	}
	if got.PaymentDate != nil {
		t.Errorf("paymentDate = %v, want nil", got.PaymentDate)
	}

	var body billingResponse
	decodeBody(t, w, &body)
	if body.Value != "1000.00" {
		t.Errorf("value = %q, want 1000.00", body.Value)
	}
	if body.Status != string(model.BillingPending) {
		t.Errorf("status = %q, want %q", body.Status, model.BillingPending)
	}
	if body.PaymentDate != nil {
		t.Errorf("paymentDate = %v, want null", body.PaymentDate)
	}
}

func TestBillingHandler_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{
			name:      "missing client",
			body:      map[string]any{"contractNumber": "C", "value": "1", "issueDate": "2025-03-01", "dueDate": "2025-03-31"},
			wantField: "clientName",
		},
		{
			name:      "invalid status",
			body:      map[string]any{"contractNumber": "C", "clientName": "A", "value": "1", "issueDate": "2025-03-01", "dueDate": "2025-03-31", "status": "aberto"},
			wantField: "status",
		},
		{
			name:      "invalid due date",
			body:      map[string]any{"contractNumber": "C", "clientName": "A", "value": "1", "issueDate": "2025-03-01", "dueDate": "amanhã"},
			wantField: "dueDate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBillingHandler(&mockBillingService{
				createFn: func(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			})

			w := httptest.NewRecorder()
			h.Create(w, withPrincipal(jsonRequest(t, http.MethodPost, "/api/billing", tt.body), userPrincipal))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := parseErrorBody(t, w); !hasFieldError(body, tt.wantField) {
				t.Errorf("errors = %+v, want field %q", body.Errors, tt.wantField)
			}
		})
	}
}

func TestBillingHandler_List_StatusFilter(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantFilter model.BillingStatus
	}{
		{name: "pago", query: "?status=pago", wantStatus: http.StatusOK, wantFilter: model.BillingPaid},
		{name: "all", query: "?status=all", wantStatus: http.StatusOK, wantFilter: ""},
		{name: "invalid", query: "?status=aberto", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.BillingFilter
			h := NewBillingHandler(&mockBillingService{
				listFn: func(ctx context.Context, p model.Principal, filter model.BillingFilter) ([]*model.Billing, error) {
					got = filter
					return nil, nil
				},
			})

			w := httptest.NewRecorder()
			h.List(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/billing"+tt.query, nil), userPrincipal))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && got.Status != tt.wantFilter {
				t.Errorf("status filter = %q, want %q", got.Status, tt.wantFilter)
			}
		})
	}
}

func TestBillingHandler_Update_PassesStatus(t *testing.T) {
	var gotPatch model.BillingPatch
	h := NewBillingHandler(&mockBillingService{
		updateFn: func(ctx context.Context, p model.Principal, id string, patch model.BillingPatch) (*model.Billing, error) {
			gotPatch = patch
			return &model.Billing{ID: id, Status: *patch.Status, Value: decimal.NewFromInt(10)}, nil
		},
	})

	req := jsonRequest(t, http.MethodPatch, "/api/billing/b-1", map[string]any{"status": "pago", "paymentDate": "2025-03-15"})
	req = withPrincipal(withChiURLParam(req, "id", "b-1"), adminPrincipal)
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if gotPatch.Status == nil || *gotPatch.Status != model.BillingPaid {
		t.Errorf("status patch = %v", gotPatch.Status)
	}
	if gotPatch.PaymentDate == nil || gotPatch.PaymentDate.String() != "2025-03-15" {
		t.Errorf("paymentDate patch = %v", gotPatch.PaymentDate)
	}
}

func TestBillingHandler_Delete_Returns204(t *testing.T) {
	var gotID string
	h := NewBillingHandler(&mockBillingService{
		deleteFn: func(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
			gotID = id
			return &model.Billing{ID: id}, nil
		},
	})

	req := withPrincipal(withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/billing/b-7", nil), "id", "b-7"), adminPrincipal)
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
	if gotID != "b-7" {
		t.Errorf("id = %q, want b-7", gotID)
	}
}

func TestBillingHandler_Cancel_NotFound(t *testing.T) {
	h := NewBillingHandler(&mockBillingService{
		cancelFn: func(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
			return nil, model.NewNotFoundError("Cobrança", id)
		},
	})

	req := withPrincipal(withChiURLParam(httptest.NewRequest(http.MethodPatch, "/api/billing/x/cancel", nil), "id", "x"), adminPrincipal)
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestBillingHandler_Stats_ResponseShape(t *testing.T) {
	var gotPeriod model.Period
	h := NewBillingHandler(&mockBillingService{
		statsFn: func(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error) {
			gotPeriod = period
			return stats.BillingStats{
				Pending:   decimal.RequireFromString("100.50"),
				Paid:      decimal.NewFromInt(200),
				Overdue:   decimal.Zero,
				Cancelled: decimal.NewFromInt(5),
			}, nil
		},
	})

	w := httptest.NewRecorder()
	h.Stats(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/billing/stats?month=2025-03", nil), adminPrincipal))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPeriod != (model.Period{Year: 2025, Month: 3}) {
		t.Errorf("period = %+v", gotPeriod)
	}

	var body map[string]float64
	decodeBody(t, w, &body)
	want := map[string]float64{"totalPendente": 100.5, "totalPago": 200, "totalVencido": 0, "totalCancelado": 5}
	for k, v := range want {
		if got, ok := body[k]; !ok || got != v {
			t.Errorf("%s = %v (present=%v), want %v", k, got, ok, v)
		}
	}
}

func TestBillingHandler_Stats_Forbidden(t *testing.T) {
	h := NewBillingHandler(&mockBillingService{
		statsFn: func(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error) {
			return stats.BillingStats{}, model.NewForbiddenError()
		},
	})

	w := httptest.NewRecorder()
	h.Stats(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/billing/stats", nil), userPrincipal))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
