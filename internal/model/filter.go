package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Period は年・月による期間条件を表す。0は未指定を意味する。
type Period struct {
	Year  int
	Month int
}

// IsZero は期間条件が未指定かどうかを返す。
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Contains は日付が期間条件に一致するかを返す。
func (p Period) Contains(d Date) bool {
	if p.Year != 0 && d.Year() != p.Year {
		return false
	}
	if p.Month != 0 && int(d.Month()) != p.Month {
		return false
	}
	return true
}

// Range は年月が両方指定されている場合に [start, end) の日付範囲を返す。
func (p Period) Range() (start, end Date, ok bool) {
	if p.Year == 0 || p.Month == 0 {
		return Date{}, Date{}, false
	}
	start = NewDate(p.Year, time.Month(p.Month), 1)
	end = Date{Time: start.AddDate(0, 1, 0)}
	return start, end, true
}

// ParsePeriod はクエリパラメータの year / month から期間条件を生成する。
// month は "YYYY-MM"（年月両方を指定）または "MM" を受け付ける。
// 空文字列と "all" は制約なしとして扱う。
func ParsePeriod(year, month string) (Period, error) {
	var p Period
	year = strings.TrimSpace(year)
	month = strings.TrimSpace(month)

	if year != "" && year != "all" {
		y, err := strconv.Atoi(year)
		if err != nil || y < 1 || y > 9999 {
			return Period{}, fmt.Errorf("invalid year %q", year)
		}
		p.Year = y
	}

	if month == "" || month == "all" {
		return p, nil
	}
	if len(month) == 7 && month[4] == '-' {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return Period{}, fmt.Errorf("invalid month %q: expected YYYY-MM", month)
		}
		p.Year = t.Year()
		p.Month = int(t.Month())
		return p, nil
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Period{}, fmt.Errorf("invalid month %q", month)
	}
	p.Month = m
	return p, nil
}

// ExpenseFilter はExpense一覧・集計の検索条件を表す。
// 各条件はAND結合し、OwnerIDsのみ集合内のOR条件となる。
type ExpenseFilter struct {
	OwnerIDs       []int64 // nilは全ユーザー
	Period         Period  // 支払日に適用
	Category       string  // 完全一致
	ContractNumber string  // 部分一致
	PaymentMethod  string  // 完全一致
}

// Matches はExpenseが検索条件に一致するかを返す。
func (f ExpenseFilter) Matches(e *Expense) bool {
	if f.OwnerIDs != nil && !slices.Contains(f.OwnerIDs, e.UserID) {
		return false
	}
	if !f.Period.Contains(e.PaymentDate) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.ContractNumber != "" && !strings.Contains(e.ContractNumber, f.ContractNumber) {
		return false
	}
	if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
		return false
	}
	return true
}

// BillingFilter はBilling一覧・集計の検索条件を表す。
type BillingFilter struct {
	OwnerIDs       []int64
	Period         Period // 発行日に適用
	Status         BillingStatus
	ContractNumber string // 部分一致
}

// Matches はBillingが検索条件に一致するかを返す。
func (f BillingFilter) Matches(b *Billing) bool {
	if f.OwnerIDs != nil && !slices.Contains(f.OwnerIDs, b.UserID) {
		return false
	}
	if !f.Period.Contains(b.IssueDate) {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.ContractNumber != "" && !strings.Contains(b.ContractNumber, f.ContractNumber) {
		return false
	}
	return true
}
