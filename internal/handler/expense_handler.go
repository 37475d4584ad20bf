package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/model"
)

// ExpenseServiceInterface は経費ハンドラーが必要とするサービスインターフェース。
type ExpenseServiceInterface interface {
	List(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]*model.Expense, error)
	Get(ctx context.Context, p model.Principal, id string) (*model.Expense, error)
	Create(ctx context.Context, p model.Principal, in model.NewExpense) (*model.Expense, error)
	Update(ctx context.Context, p model.Principal, id string, patch model.ExpensePatch) (*model.Expense, error)
	Delete(ctx context.Context, p model.Principal, id string) (*model.Expense, error)
	Cancel(ctx context.Context, p model.Principal, id string) (*model.Expense, error)
}

// ExpenseHandler は経費のHTTPハンドラー。
type ExpenseHandler struct {
	service ExpenseServiceInterface
}

// NewExpenseHandler はExpenseHandlerを生成する。
func NewExpenseHandler(service ExpenseServiceInterface) *ExpenseHandler {
	return &ExpenseHandler{
		service: service,
	}
}

const invalidExpenseMessage = "Dados de despesa inválidos"

type createExpenseRequest struct {
	ContractNumber string       `json:"contractNumber" validate:"required,max=100"`
	Category       string       `json:"category" validate:"required,max=200"`
	PaymentMethod  string       `json:"paymentMethod" validate:"required,max=64"`
	Value          amountInput  `json:"value" validate:"required,amount"`
	TotalValue     *amountInput `json:"totalValue" validate:"omitempty,amount"`
	PaymentDate    string       `json:"paymentDate" validate:"required,date"`
	ReceiptURL     *string      `json:"receiptUrl" validate:"omitempty,url"`
}

type updateExpenseRequest struct {
	ContractNumber *string      `json:"contractNumber" validate:"omitempty,max=100"`
	Category       *string      `json:"category" validate:"omitempty,max=200"`
	PaymentMethod  *string      `json:"paymentMethod" validate:"omitempty,max=64"`
	Value          *amountInput `json:"value" validate:"omitempty,amount"`
	TotalValue     *amountInput `json:"totalValue" validate:"omitempty,amount"`
	PaymentDate    *string      `json:"paymentDate" validate:"omitempty,date"`
	ReceiptURL     *string      `json:"receiptUrl" validate:"omitempty,url"`
}

type deleteExpenseResponse struct {
	Message string          `json:"message"`
	Expense expenseResponse `json:"expense"`
}

// List は経費一覧を返す。
// GET /api/expenses?year=&month=&category=&contractNumber=&paymentMethod=
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	filter, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	expenses, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponses(expenses))
}

// Get は経費を1件返す。
// GET /api/expenses/{id}
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	e, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

// Create は経費を登録する。
// POST /api/expenses
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createExpenseRequest
	if err := decodeAndValidate(w, r, &req, invalidExpenseMessage); err != nil {
		handleServiceError(w, r, err)
		return
	}

	e, err := h.service.Create(r.Context(), p, model.NewExpense{
		ContractNumber: req.ContractNumber,
		Category:       req.Category,
		PaymentMethod:  req.PaymentMethod,
		Value:          mustAmount(req.Value),
		TotalValue:     optionalAmount(req.TotalValue),
		PaymentDate:    mustDate(req.PaymentDate),
		ReceiptURL:     req.ReceiptURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

// Update は経費を部分更新する。管理者のみ。
// PUT /api/expenses/{id}
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req updateExpenseRequest
	if err := decodeAndValidate(w, r, &req, invalidExpenseMessage); err != nil {
		handleServiceError(w, r, err)
		return
	}

	e, err := h.service.Update(r.Context(), p, chi.URLParam(r, "id"), model.ExpensePatch{
		ContractNumber: req.ContractNumber,
		Category:       req.Category,
		PaymentMethod:  req.PaymentMethod,
		Value:          optionalAmount(req.Value),
		TotalValue:     optionalAmount(req.TotalValue),
		PaymentDate:    optionalDate(req.PaymentDate),
		ReceiptURL:     req.ReceiptURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

// Delete は経費を削除し、削除前の内容を返す。管理者のみ。
// DELETE /api/expenses/{id}
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	e, err := h.service.Delete(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteExpenseResponse{
		Message: "Despesa excluída com sucesso",
		Expense: toExpenseResponse(e),
	})
}

// Cancel は経費をキャンセル済みにする。所有者または管理者のみ。
// PATCH /api/expenses/{id}/cancel
func (h *ExpenseHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	e, err := h.service.Cancel(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

// parseExpenseFilter はクエリパラメータから経費の検索条件を生成する。
// "all" と空文字列は条件なしとして扱う。owner-setはサービス層で設定する。
func parseExpenseFilter(q url.Values) (model.ExpenseFilter, error) {
	period, err := model.ParsePeriod(q.Get("year"), q.Get("month"))
	if err != nil {
		return model.ExpenseFilter{}, model.NewValidationError("Filtro inválido",
			model.FieldError{Field: "month", Message: err.Error()})
	}
	return model.ExpenseFilter{
		Period:         period,
		Category:       queryValue(q, "category"),
		ContractNumber: strings.TrimSpace(q.Get("contractNumber")),
		PaymentMethod:  queryValue(q, "paymentMethod"),
	}, nil
}

// queryValue は "all" を空文字列として扱ってクエリ値を返す。
func queryValue(q url.Values, key string) string {
	v := strings.TrimSpace(q.Get(key))
	if v == "all" {
		return ""
	}
	return v
}
