package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CancelledPrefix はキャンセル済みExpenseのカテゴリに付与される接頭辞。
// Expenseは状態フィールドを持たず、この接頭辞でキャンセルを表現する。
const CancelledPrefix = "[CANCELADA]"

// Expense は契約番号に紐づく経費レコードを表す。
type Expense struct {
	ID             string
	UserID         int64
	ContractNumber string
	Category       string
	PaymentMethod  string
	Value          decimal.Decimal
	TotalValue     decimal.Decimal
	PaymentDate    Date
	ReceiptURL     *string
	CreatedAt      time.Time
}

// IsCancelled はカテゴリにキャンセル接頭辞が付いているかを返す。
func (e *Expense) IsCancelled() bool {
	return strings.HasPrefix(e.Category, CancelledPrefix)
}

// CancelCategory はカテゴリにキャンセル接頭辞を付与する。
// 既に付与済みの場合はそのまま返す。
func CancelCategory(category string) string {
	if strings.HasPrefix(category, CancelledPrefix) {
		return category
	}
	return CancelledPrefix + " " + category
}

// NewExpense は作成用の入力値を保持する。
// TotalValueが未指定の場合はValueと同額になる。
type NewExpense struct {
	UserID         int64
	ContractNumber string
	Category       string
	PaymentMethod  string
	Value          decimal.Decimal
	TotalValue     *decimal.Decimal
	PaymentDate    Date
	ReceiptURL     *string
}

// Build はIDと作成日時を割り当ててExpenseを生成する。
func (n NewExpense) Build(id string, now time.Time) *Expense {
	total := n.Value
	if n.TotalValue != nil {
		total = *n.TotalValue
	}
	return &Expense{
		ID:             id,
		UserID:         n.UserID,
		ContractNumber: n.ContractNumber,
		Category:       n.Category,
		PaymentMethod:  n.PaymentMethod,
		Value:          n.Value,
		TotalValue:     total,
		PaymentDate:    n.PaymentDate,
		ReceiptURL:     n.ReceiptURL,
		CreatedAt:      now,
	}
}

// ExpensePatch は部分更新の入力値を保持する。nilのフィールドは変更しない。
type ExpensePatch struct {
	ContractNumber *string
	Category       *string
	PaymentMethod  *string
	Value          *decimal.Decimal
	TotalValue     *decimal.Decimal
	PaymentDate    *Date
	ReceiptURL     *string
}

// IsEmpty は変更対象のフィールドがないかどうかを返す。
func (p ExpensePatch) IsEmpty() bool {
	return p.ContractNumber == nil && p.Category == nil && p.PaymentMethod == nil &&
		p.Value == nil && p.TotalValue == nil && p.PaymentDate == nil && p.ReceiptURL == nil
}

// Apply はパッチの値をExpenseに反映する。
func (p ExpensePatch) Apply(e *Expense) {
	if p.ContractNumber != nil {
		e.ContractNumber = *p.ContractNumber
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.Value != nil {
		e.Value = *p.Value
	}
	if p.TotalValue != nil {
		e.TotalValue = *p.TotalValue
	}
	if p.PaymentDate != nil {
		e.PaymentDate = *p.PaymentDate
	}
	if p.ReceiptURL != nil {
		url := *p.ReceiptURL
		e.ReceiptURL = &url
	}
}
