package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelCategory(t *testing.T) {
	once := CancelCategory("Material")
	assert.Equal(t, "[CANCELADA] Material", once)
	assert.Equal(t, once, CancelCategory(once), "cancel must be idempotent")

	e := &Expense{Category: once}
	assert.True(t, e.IsCancelled())
}

func TestNewExpense_Build_DefaultsTotalValue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := NewExpense{UserID: 1, Category: "Material", Value: decimal.RequireFromString("100.00")}

	e := n.Build("id-1", now)
	assert.True(t, e.TotalValue.Equal(e.Value))
	assert.Equal(t, now, e.CreatedAt)

	total := decimal.RequireFromString("120.50")
	n.TotalValue = &total
	e = n.Build("id-2", now)
	assert.Equal(t, "120.50", FormatAmount(e.TotalValue))
}

func TestExpensePatch_Apply(t *testing.T) {
	e := &Expense{Category: "Material", PaymentMethod: "pix"}
	assert.True(t, ExpensePatch{}.IsEmpty())

	cat := "Serviço"
	p := ExpensePatch{Category: &cat}
	require.False(t, p.IsEmpty())
	p.Apply(e)
	assert.Equal(t, "Serviço", e.Category)
	assert.Equal(t, "pix", e.PaymentMethod, "absent fields must stay unchanged")
}

func TestNewBilling_Build_DefaultStatus(t *testing.T) {
	b := NewBilling{UserID: 1}.Build("id", time.Now())
	assert.Equal(t, BillingPending, b.Status)
	assert.True(t, BillingCancelled.IsValid())
	assert.False(t, BillingStatus("pending").IsValid())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12.34", want: "12.34"},
		{in: "12,34", want: "12.34"},
		{in: " 100 ", want: "100.00"},
		{in: "0", want: "0.00"},
		{in: "-1", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "12.340", want: "12.34"},
		{in: "0.005", wantErr: true},
		{in: "10,999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
			assert.GreaterOrEqual(t, got.Exponent(), int32(-2))
		})
	}
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &d))
	assert.Equal(t, "2024-03-15", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T10:00:00Z"`), &d))
	assert.Equal(t, "2024-03-15", d.String())
	assert.Equal(t, "2024-03", d.YearMonth())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-15"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"15/03/2024"`), &d))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-02", d.String())

	require.NoError(t, d.Scan([]byte("2023-12-31")))
	assert.Equal(t, "2023-12-31", d.String())

	assert.Error(t, d.Scan(42))
}
