package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/stats"
)

// BillingServiceInterface は請求ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	List(ctx context.Context, p model.Principal, filter model.BillingFilter) ([]*model.Billing, error)
	Create(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error)
	Update(ctx context.Context, p model.Principal, id string, patch model.BillingPatch) (*model.Billing, error)
	Cancel(ctx context.Context, p model.Principal, id string) (*model.Billing, error)
	Delete(ctx context.Context, p model.Principal, id string) (*model.Billing, error)
	Stats(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error)
}

// BillingHandler は請求のHTTPハンドラー。
type BillingHandler struct {
	service BillingServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(service BillingServiceInterface) *BillingHandler {
	return &BillingHandler{service: service}
}

const invalidBillingMessage = "Dados de cobrança inválidos"

type createBillingRequest struct {
	ContractNumber string      `json:"contractNumber" validate:"required,max=100"`
	ClientName     string      `json:"clientName" validate:"required,max=200"`
	Description    string      `json:"description" validate:"max=1000"`
	Value          amountInput `json:"value" validate:"required,amount"`
	IssueDate      string      `json:"issueDate" validate:"required,date"`
	DueDate        string      `json:"dueDate" validate:"required,date"`
	PaymentDate    *string     `json:"paymentDate" validate:"omitempty,date"`
	Status         string      `json:"status" validate:"omitempty,billingstatus"`
}

type updateBillingRequest struct {
	ContractNumber *string      `json:"contractNumber" validate:"omitempty,max=100"`
	ClientName     *string      `json:"clientName" validate:"omitempty,max=200"`
	Description    *string      `json:"description" validate:"omitempty,max=1000"`
	Value          *amountInput `json:"value" validate:"omitempty,amount"`
	IssueDate      *string      `json:"issueDate" validate:"omitempty,date"`
	DueDate        *string      `json:"dueDate" validate:"omitempty,date"`
	PaymentDate    *string      `json:"paymentDate" validate:"omitempty,date"`
	Status         *string      `json:"status" validate:"omitempty,billingstatus"`
}

// List は請求一覧を返す。
// GET /api/billing?year=&month=&status=&contractNumber=
func (h *BillingHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	filter, err := parseBillingFilter(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	rows, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBillingResponses(rows))
}

// Create は請求を登録する。
// POST /api/billing
func (h *BillingHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createBillingRequest
	if err := decodeAndValidate(w, r, &req, invalidBillingMessage); err != nil {
		handleServiceError(w, r, err)
		return
	}

	b, err := h.service.Create(r.Context(), p, model.NewBilling{
		ContractNumber: req.ContractNumber,
		ClientName:     req.ClientName,
		Description:    req.Description,
		Value:          mustAmount(req.Value),
		IssueDate:      mustDate(req.IssueDate),
		DueDate:        mustDate(req.DueDate),
		PaymentDate:    optionalDate(req.PaymentDate),
		Status:         model.BillingStatus(req.Status),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBillingResponse(b))
}

// Update は請求を部分更新する。管理者のみ。
// PATCH /api/billing/{id}
func (h *BillingHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req updateBillingRequest
	if err := decodeAndValidate(w, r, &req, invalidBillingMessage); err != nil {
		handleServiceError(w, r, err)
		return
	}

	patch := model.BillingPatch{
		ContractNumber: req.ContractNumber,
		ClientName:     req.ClientName,
		Description:    req.Description,
		Value:          optionalAmount(req.Value),
		IssueDate:      optionalDate(req.IssueDate),
		DueDate:        optionalDate(req.DueDate),
		PaymentDate:    optionalDate(req.PaymentDate),
	}
	if req.Status != nil {
		status := model.BillingStatus(*req.Status)
		patch.Status = &status
	}

	b, err := h.service.Update(r.Context(), p, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBillingResponse(b))
}

// Cancel は請求の状態をcanceladoにする。管理者のみ。
// PATCH /api/billing/{id}/cancel
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	b, err := h.service.Cancel(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBillingResponse(b))
}

// Delete は請求を削除する。管理者のみ。
// DELETE /api/billing/{id}
func (h *BillingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats は状態別の請求合計を返す。管理者のみ。
// GET /api/billing/stats?year=&month=
func (h *BillingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	period, err := model.ParsePeriod(q.Get("year"), q.Get("month"))
	if err != nil {
		handleServiceError(w, r, model.NewValidationError("Filtro inválido",
			model.FieldError{Field: "month", Message: err.Error()}))
		return
	}

	result, err := h.service.Stats(r.Context(), p, period)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBillingStatsResponse(result))
}

// parseBillingFilter はクエリパラメータから請求の検索条件を生成する。
func parseBillingFilter(q url.Values) (model.BillingFilter, error) {
	period, err := model.ParsePeriod(q.Get("year"), q.Get("month"))
	if err != nil {
		return model.BillingFilter{}, model.NewValidationError("Filtro inválido",
			model.FieldError{Field: "month", Message: err.Error()})
	}

	status := model.BillingStatus(queryValue(q, "status"))
	if status != "" && !status.IsValid() {
		return model.BillingFilter{}, model.NewValidationError("Filtro inválido",
			model.FieldError{Field: "status", Message: "deve ser pendente, pago, vencido ou cancelado"})
	}

	return model.BillingFilter{
		Period:         period,
		Status:         status,
		ContractNumber: strings.TrimSpace(q.Get("contractNumber")),
	}, nil
}
