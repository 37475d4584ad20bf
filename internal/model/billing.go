package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingStatus は請求レコードの状態を表す。
type BillingStatus string

const (
	BillingPending   BillingStatus = "pendente"
	BillingPaid      BillingStatus = "pago"
	BillingOverdue   BillingStatus = "vencido"
	BillingCancelled BillingStatus = "cancelado"
)

// BillingStatuses は定義済みの状態一覧を返す。
func BillingStatuses() []BillingStatus {
	return []BillingStatus{BillingPending, BillingPaid, BillingOverdue, BillingCancelled}
}

// IsValid は状態が定義済みの値かどうかを返す。
func (s BillingStatus) IsValid() bool {
	switch s {
	case BillingPending, BillingPaid, BillingOverdue, BillingCancelled:
		return true
	}
	return false
}

// Billing は顧客への請求レコードを表す。
type Billing struct {
	ID             string
	UserID         int64
	ContractNumber string
	ClientName     string
	Description    string
	Value          decimal.Decimal
	IssueDate      Date
	DueDate        Date
	PaymentDate    *Date
	Status         BillingStatus
	CreatedAt      time.Time
}

// NewBilling は作成用の入力値を保持する。Statusが空の場合はpendenteになる。
type NewBilling struct {
	UserID         int64
	ContractNumber string
	ClientName     string
	Description    string
	Value          decimal.Decimal
	IssueDate      Date
	DueDate        Date
	PaymentDate    *Date
	Status         BillingStatus
}

// Build はIDと作成日時を割り当ててBillingを生成する。
func (n NewBilling) Build(id string, now time.Time) *Billing {
	status := n.Status
	if status == "" {
		status = BillingPending
	}
	return &Billing{
		ID:             id,
		UserID:         n.UserID,
		ContractNumber: n.ContractNumber,
		ClientName:     n.ClientName,
		Description:    n.Description,
		Value:          n.Value,
		IssueDate:      n.IssueDate,
		DueDate:        n.DueDate,
		PaymentDate:    n.PaymentDate,
		Status:         status,
		CreatedAt:      now,
	}
}

// BillingPatch は部分更新の入力値を保持する。nilのフィールドは変更しない。
type BillingPatch struct {
	ContractNumber *string
	ClientName     *string
	Description    *string
	Value          *decimal.Decimal
	IssueDate      *Date
	DueDate        *Date
	PaymentDate    *Date
	Status         *BillingStatus
}

// IsEmpty は変更対象のフィールドがないかどうかを返す。
func (p BillingPatch) IsEmpty() bool {
	return p.ContractNumber == nil && p.ClientName == nil && p.Description == nil &&
		p.Value == nil && p.IssueDate == nil && p.DueDate == nil &&
		p.PaymentDate == nil && p.Status == nil
}

// Apply はパッチの値をBillingに反映する。
func (p BillingPatch) Apply(b *Billing) {
	if p.ContractNumber != nil {
		b.ContractNumber = *p.ContractNumber
	}
	if p.ClientName != nil {
		b.ClientName = *p.ClientName
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Value != nil {
		b.Value = *p.Value
	}
	if p.IssueDate != nil {
		b.IssueDate = *p.IssueDate
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.PaymentDate != nil {
		d := *p.PaymentDate
		b.PaymentDate = &d
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
}
