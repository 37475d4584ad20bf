// Package stats は経費・請求レコードの集計を行う。
// 全ての関数は純粋関数で、入力スライスを変更しない。
// 金額はdecimalで合算し、浮動小数点の丸め誤差を持ち込まない。
package stats

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/despesas/internal/model"
)

// CategoryStat はカテゴリ別の合計と件数。
type CategoryStat struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// PaymentMethodStat は支払方法別の件数。
type PaymentMethodStat struct {
	PaymentMethod string
	Count         int
}

// MonthlyTotal は "YYYY-MM" 単位の合計。
type MonthlyTotal struct {
	Month string
	Total decimal.Decimal
}

// ContractBreakdown は契約番号別の合計、件数、カテゴリ内訳。
type ContractBreakdown struct {
	ContractNumber string
	Total          decimal.Decimal
	Count          int
	Categories     []CategoryStat
}

// BillingStats は請求状態別の合計。存在しない状態は0となる。
type BillingStats struct {
	Pending   decimal.Decimal
	Paid      decimal.Decimal
	Overdue   decimal.Decimal
	Cancelled decimal.Decimal
}

// Overview はダッシュボード上部のサマリー。
type Overview struct {
	TotalAmount     decimal.Decimal
	TotalExpenses   int
	ThisMonth       decimal.Decimal
	ActiveContracts int
}

// amount はカテゴリ・月別・サマリーで集計する金額（TotalValue）。
func amount(e *model.Expense) decimal.Decimal {
	return e.TotalValue
}

// contractAmount は契約別内訳で集計する金額（Value）。
func contractAmount(e *model.Expense) decimal.Decimal {
	return e.Value
}

// byTotalDesc は合計降順、同額の場合はキー昇順で並べる比較関数を返す。
func byTotalDesc[T any](total func(T) decimal.Decimal, key func(T) string) func(a, b T) int {
	return func(a, b T) int {
		if c := total(b).Cmp(total(a)); c != 0 {
			return c
		}
		return cmp.Compare(key(a), key(b))
	}
}

// ByCategory はカテゴリ別に合計と件数を集計する。
func ByCategory(expenses []*model.Expense) []CategoryStat {
	return groupByCategory(expenses, amount)
}

func groupByCategory(expenses []*model.Expense, amount func(*model.Expense) decimal.Decimal) []CategoryStat {
	index := map[string]int{}
	out := []CategoryStat{}
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryStat{Category: e.Category})
		}
		out[i].Total = out[i].Total.Add(amount(e))
		out[i].Count++
	}
	slices.SortFunc(out, byTotalDesc(
		func(s CategoryStat) decimal.Decimal { return s.Total },
		func(s CategoryStat) string { return s.Category },
	))
	return out
}

// ByPaymentMethod は支払方法別の件数を集計する。件数降順で返す。
func ByPaymentMethod(expenses []*model.Expense) []PaymentMethodStat {
	counts := map[string]int{}
	for _, e := range expenses {
		counts[e.PaymentMethod]++
	}
	out := make([]PaymentMethodStat, 0, len(counts))
	for method, n := range counts {
		out = append(out, PaymentMethodStat{PaymentMethod: method, Count: n})
	}
	slices.SortFunc(out, func(a, b PaymentMethodStat) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	return out
}

// MonthlyTrend は支払日の年月別に合計を集計する。年月の昇順で返す。
func MonthlyTrend(expenses []*model.Expense) []MonthlyTotal {
	totals := map[string]decimal.Decimal{}
	for _, e := range expenses {
		key := e.PaymentDate.YearMonth()
		totals[key] = totals[key].Add(amount(e))
	}
	out := make([]MonthlyTotal, 0, len(totals))
	for month, total := range totals {
		out = append(out, MonthlyTotal{Month: month, Total: total})
	}
	slices.SortFunc(out, func(a, b MonthlyTotal) int { return cmp.Compare(a.Month, b.Month) })
	return out
}

// ByContract は契約番号別に合計、件数、カテゴリ内訳を集計する。
// 合計の降順で返す。他の集計と異なりValueを合算する。
func ByContract(expenses []*model.Expense) []ContractBreakdown {
	grouped := map[string][]*model.Expense{}
	for _, e := range expenses {
		grouped[e.ContractNumber] = append(grouped[e.ContractNumber], e)
	}
	out := make([]ContractBreakdown, 0, len(grouped))
	for contract, rows := range grouped {
		b := ContractBreakdown{ContractNumber: contract, Count: len(rows), Categories: groupByCategory(rows, contractAmount)}
		for _, e := range rows {
			b.Total = b.Total.Add(contractAmount(e))
		}
		out = append(out, b)
	}
	slices.SortFunc(out, byTotalDesc(
		func(b ContractBreakdown) decimal.Decimal { return b.Total },
		func(b ContractBreakdown) string { return b.ContractNumber },
	))
	return out
}

// ByBillingStatus は請求状態別の合計を集計する。
func ByBillingStatus(billing []*model.Billing) BillingStats {
	var s BillingStats
	for _, b := range billing {
		switch b.Status {
		case model.BillingPending:
			s.Pending = s.Pending.Add(b.Value)
		case model.BillingPaid:
			s.Paid = s.Paid.Add(b.Value)
		case model.BillingOverdue:
			s.Overdue = s.Overdue.Add(b.Value)
		case model.BillingCancelled:
			s.Cancelled = s.Cancelled.Add(b.Value)
		}
	}
	return s
}

// Summarize は全期間の経費と当月分の経費からサマリーを作成する。
// thisMonthがnilの場合はallからnowの年月に一致する支払日の経費を抽出する。
func Summarize(all, thisMonth []*model.Expense, now time.Time) Overview {
	if thisMonth == nil {
		key := now.Format("2006-01")
		for _, e := range all {
			if e.PaymentDate.YearMonth() == key {
				thisMonth = append(thisMonth, e)
			}
		}
	}

	o := Overview{TotalExpenses: len(all)}
	contracts := map[string]struct{}{}
	for _, e := range all {
		o.TotalAmount = o.TotalAmount.Add(amount(e))
		contracts[e.ContractNumber] = struct{}{}
	}
	for _, e := range thisMonth {
		o.ThisMonth = o.ThisMonth.Add(amount(e))
	}
	o.ActiveContracts = len(contracts)
	return o
}
