package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository/memory"
	"github.com/hitoshi/despesas/internal/security"
)

var (
	admin = model.Principal{UserID: 1, Role: model.RoleAdmin}
	alice = model.Principal{UserID: 2, Role: model.RoleUser}
	bob   = model.Principal{UserID: 3, Role: model.RoleUser}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(memory.New().Billing(), security.NewTextSanitizer())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func newBilling(contract, value string, status model.BillingStatus) model.NewBilling {
	return model.NewBilling{
		ContractNumber: contract,
		ClientName:     "Cliente " + contract,
		Description:    "Serviços de consultoria",
		Value:          decimal.RequireFromString(value),
		IssueDate:      model.NewDate(2024, 3, 1),
		DueDate:        model.NewDate(2024, 3, 31),
		Status:         status,
	}
}

func requireAPICode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected *model.APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
}

func TestCreate_DefaultsToPendingAndOwner(t *testing.T) {
	svc := newTestService(t)

	in := newBilling("0001", "5000.00", "")
	in.UserID = 42
	b, err := svc.Create(context.Background(), alice, in)
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BillingPending, b.Status)
	assert.Equal(t, int64(2), b.UserID)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.NewBilling)
	}{
		{name: "unknown status", mutate: func(n *model.NewBilling) { n.Status = "arquivado" }},
		{name: "empty client", mutate: func(n *model.NewBilling) { n.ClientName = "<i></i>" }},
		{name: "empty contract", mutate: func(n *model.NewBilling) { n.ContractNumber = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			in := newBilling("0001", "10", model.BillingPending)
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), alice, in)
			requireAPICode(t, err, model.ErrCodeValidation)
		})
	}
}

func TestStats_SumsByStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, in := range []model.NewBilling{
		newBilling("0001", "15000.00", model.BillingPaid),
		newBilling("0002", "8500.00", model.BillingPaid),
		newBilling("0003", "12000.00", model.BillingPaid),
		newBilling("0004", "5000.00", model.BillingPending),
		newBilling("0005", "2800.00", model.BillingOverdue),
	} {
		_, err := svc.Create(ctx, alice, in)
		require.NoError(t, err)
	}

	got, err := svc.Stats(ctx, admin, model.Period{})
	require.NoError(t, err)
	assert.Equal(t, "5000.00", got.Pending.StringFixed(2))
	assert.Equal(t, "35500.00", got.Paid.StringFixed(2))
	assert.Equal(t, "2800.00", got.Overdue.StringFixed(2))
	assert.True(t, got.Cancelled.IsZero())

	_, err = svc.Stats(ctx, alice, model.Period{})
	requireAPICode(t, err, model.ErrCodeForbidden)
}

func TestList_OwnerScopeAndFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, newBilling("0001", "10", model.BillingPaid))
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, newBilling("0002", "20", model.BillingPending))
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, newBilling("0003", "30", model.BillingPaid))
	require.NoError(t, err)

	own, err := svc.List(ctx, alice, model.BillingFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	paid, err := svc.List(ctx, admin, model.BillingFilter{Status: model.BillingPaid})
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	byContract, err := svc.List(ctx, admin, model.BillingFilter{ContractNumber: "003"})
	require.NoError(t, err)
	require.Len(t, byContract, 1)
	assert.Equal(t, int64(3), byContract[0].UserID)
}

func TestUpdateCancelDelete_AdminOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, alice, newBilling("0001", "10", model.BillingPending))
	require.NoError(t, err)

	paid := model.BillingPaid
	_, err = svc.Update(ctx, alice, b.ID, model.BillingPatch{Status: &paid})
	requireAPICode(t, err, model.ErrCodeForbidden)
	_, err = svc.Cancel(ctx, alice, b.ID)
	requireAPICode(t, err, model.ErrCodeForbidden)
	_, err = svc.Delete(ctx, alice, b.ID)
	requireAPICode(t, err, model.ErrCodeForbidden)

	updated, err := svc.Update(ctx, admin, b.ID, model.BillingPatch{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, model.BillingPaid, updated.Status)
	assert.Equal(t, "Cliente 0001", updated.ClientName)

	bogus := model.BillingStatus("perdido")
	_, err = svc.Update(ctx, admin, b.ID, model.BillingPatch{Status: &bogus})
	requireAPICode(t, err, model.ErrCodeValidation)

	cancelled, err := svc.Cancel(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillingCancelled, cancelled.Status)

	prior, err := svc.Delete(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, prior.ID)

	_, err = svc.Delete(ctx, admin, b.ID)
	requireAPICode(t, err, model.ErrCodeNotFound)
	_, err = svc.Cancel(ctx, admin, "not-a-uuid")
	requireAPICode(t, err, model.ErrCodeNotFound)
}
