package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/stats"
)

// StatsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Overview(ctx context.Context, p model.Principal) (stats.Overview, error)
	CategoryStats(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.CategoryStat, error)
	PaymentMethodStats(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.PaymentMethodStat, error)
	MonthlyTrend(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.MonthlyTotal, error)
	ContractBreakdown(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.ContractBreakdown, error)
}

// StatsHandler は経費集計のHTTPハンドラー。
// いずれもPrincipalのowner-setで絞り込んだ結果を返す。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

// Overview はダッシュボードのサマリーを返す。
// GET /api/stats
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	o, err := h.service.Overview(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOverviewResponse(o))
}

// Categories はカテゴリ別の合計と件数を返す。
// GET /api/stats/categories?month=&contractNumber=
func (h *StatsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	p, filter, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.service.CategoryStats(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryStatResponses(result))
}

// PaymentMethods は支払方法別の件数を返す。
// GET /api/stats/payment-methods?month=&contractNumber=
func (h *StatsHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	p, filter, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.service.PaymentMethodStats(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentMethodStatResponses(result))
}

// Monthly は月別の合計を返す。
// GET /api/stats/monthly
func (h *StatsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	p, filter, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.service.MonthlyTrend(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMonthlyTotalResponses(result))
}

// Contracts は契約番号別の内訳を返す。
// GET /api/stats/contracts?month=&contractNumber=
func (h *StatsHandler) Contracts(w http.ResponseWriter, r *http.Request) {
	p, filter, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.service.ContractBreakdown(r.Context(), p, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toContractBreakdownResponses(result))
}

// prepare はPrincipalとクエリの検索条件を取り出す。失敗時はレスポンスを書き込む。
func (h *StatsHandler) prepare(w http.ResponseWriter, r *http.Request) (model.Principal, model.ExpenseFilter, bool) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return model.Principal{}, model.ExpenseFilter{}, false
	}
	filter, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, err)
		return model.Principal{}, model.ExpenseFilter{}, false
	}
	return p, filter, true
}
