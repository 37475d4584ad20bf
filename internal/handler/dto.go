package handler

import (
	"time"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/stats"
)

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID      int64   `json:"id"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	AuthUID *string `json:"authUid,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

// expenseResponse は経費のAPIレスポンス。金額は小数点以下2桁の文字列で返す。
type expenseResponse struct {
	ID             string     `json:"id"`
	UserID         int64      `json:"userId"`
	ContractNumber string     `json:"contractNumber"`
	Category       string     `json:"category"`
	PaymentMethod  string     `json:"paymentMethod"`
	Value          string     `json:"value"`
	TotalValue     string     `json:"totalValue"`
	PaymentDate    model.Date `json:"paymentDate"`
	ReceiptURL     *string    `json:"receiptUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toExpenseResponse(e *model.Expense) expenseResponse {
	return expenseResponse{
		ID:             e.ID,
		UserID:         e.UserID,
		ContractNumber: e.ContractNumber,
		Category:       e.Category,
		PaymentMethod:  e.PaymentMethod,
		Value:          model.FormatAmount(e.Value),
		TotalValue:     model.FormatAmount(e.TotalValue),
		PaymentDate:    e.PaymentDate,
		ReceiptURL:     e.ReceiptURL,
		CreatedAt:      e.CreatedAt,
	}
}

func toExpenseResponses(expenses []*model.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

// billingResponse は請求のAPIレスポンス。
type billingResponse struct {
	ID             string      `json:"id"`
	UserID         int64       `json:"userId"`
	ContractNumber string      `json:"contractNumber"`
	ClientName     string      `json:"clientName"`
	Description    string      `json:"description"`
	Value          string      `json:"value"`
	IssueDate      model.Date  `json:"issueDate"`
	DueDate        model.Date  `json:"dueDate"`
	PaymentDate    *model.Date `json:"paymentDate"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
}

func toBillingResponse(b *model.Billing) billingResponse {
	return billingResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		ContractNumber: b.ContractNumber,
		ClientName:     b.ClientName,
		Description:    b.Description,
		Value:          model.FormatAmount(b.Value),
		IssueDate:      b.IssueDate,
		DueDate:        b.DueDate,
		PaymentDate:    b.PaymentDate,
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt,
	}
}

func toBillingResponses(rows []*model.Billing) []billingResponse {
	out := make([]billingResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBillingResponse(b))
	}
	return out
}

// 集計レスポンスはチャート描画用に数値で返す。
// 集計自体はdecimalで行い、変換はここでのみ行う。

type categoryStatResponse struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

type paymentMethodStatResponse struct {
	PaymentMethod string `json:"paymentMethod"`
	Count         int    `json:"count"`
}

type monthlyTotalResponse struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type contractCategoryResponse struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}

type contractBreakdownResponse struct {
	ContractNumber string                     `json:"contractNumber"`
	TotalAmount    float64                    `json:"totalAmount"`
	ExpenseCount   int                        `json:"expenseCount"`
	Categories     []contractCategoryResponse `json:"categories"`
}

type billingStatsResponse struct {
	TotalPendente  float64 `json:"totalPendente"`
	TotalPago      float64 `json:"totalPago"`
	TotalVencido   float64 `json:"totalVencido"`
	TotalCancelado float64 `json:"totalCancelado"`
}

type overviewResponse struct {
	TotalAmount     float64 `json:"totalAmount"`
	TotalExpenses   int     `json:"totalExpenses"`
	ThisMonth       float64 `json:"thisMonth"`
	ActiveContracts int     `json:"activeContracts"`
}

func toCategoryStatResponses(in []stats.CategoryStat) []categoryStatResponse {
	out := make([]categoryStatResponse, 0, len(in))
	for _, s := range in {
		out = append(out, categoryStatResponse{
			Category: s.Category,
			Total:    s.Total.InexactFloat64(),
			Count:    s.Count,
		})
	}
	return out
}

func toPaymentMethodStatResponses(in []stats.PaymentMethodStat) []paymentMethodStatResponse {
	out := make([]paymentMethodStatResponse, 0, len(in))
	for _, s := range in {
		out = append(out, paymentMethodStatResponse{PaymentMethod: s.PaymentMethod, Count: s.Count})
	}
	return out
}

func toMonthlyTotalResponses(in []stats.MonthlyTotal) []monthlyTotalResponse {
	out := make([]monthlyTotalResponse, 0, len(in))
	for _, m := range in {
		out = append(out, monthlyTotalResponse{Month: m.Month, Total: m.Total.InexactFloat64()})
	}
	return out
}

func toContractBreakdownResponses(in []stats.ContractBreakdown) []contractBreakdownResponse {
	out := make([]contractBreakdownResponse, 0, len(in))
	for _, c := range in {
		cats := make([]contractCategoryResponse, 0, len(c.Categories))
		for _, cat := range c.Categories {
			cats = append(cats, contractCategoryResponse{
				Category: cat.Category,
				Amount:   cat.Total.InexactFloat64(),
				Count:    cat.Count,
			})
		}
		out = append(out, contractBreakdownResponse{
			ContractNumber: c.ContractNumber,
			TotalAmount:    c.Total.InexactFloat64(),
			ExpenseCount:   c.Count,
			Categories:     cats,
		})
	}
	return out
}

func toBillingStatsResponse(s stats.BillingStats) billingStatsResponse {
	return billingStatsResponse{
		TotalPendente:  s.Pending.InexactFloat64(),
		TotalPago:      s.Paid.InexactFloat64(),
		TotalVencido:   s.Overdue.InexactFloat64(),
		TotalCancelado: s.Cancelled.InexactFloat64(),
	}
}

func toOverviewResponse(o stats.Overview) overviewResponse {
	return overviewResponse{
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		TotalExpenses:   o.TotalExpenses,
		ThisMonth:       o.ThisMonth.InexactFloat64(),
		ActiveContracts: o.ActiveContracts,
	}
}
