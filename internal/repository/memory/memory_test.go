package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

func TestNewSeeded_LoadsExampleRows(t *testing.T) {
	s, err := NewSeeded()
	require.NoError(t, err)
	ctx := context.Background()

	admins, err := s.Users().ListByRole(ctx, model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, int64(1), admins[0].ID)

	bills, err := s.Billing().List(ctx, model.BillingFilter{})
	require.NoError(t, err)
	require.Len(t, bills, 5)
	assert.Equal(t, "0001", bills[0].ContractNumber, "seed order is newest first")

	pending, _ := s.Billing().List(ctx, model.BillingFilter{Status: model.BillingPending})
	require.Len(t, pending, 1)
	assert.Equal(t, "5000.00", model.FormatAmount(pending[0].Value))

	expenses, _ := s.Expenses().List(ctx, model.ExpenseFilter{})
	require.NotEmpty(t, expenses)
	for _, e := range expenses {
		assert.False(t, e.TotalValue.IsZero(), "total value defaults to value")
	}
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &model.User{Email: "a@example.com", Name: "A", Role: model.RoleUser}
	require.NoError(t, s.Users().Create(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	err := s.Users().Create(ctx, &model.User{Email: "A@example.com", Name: "B", Role: model.RoleUser})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	require.NoError(t, s.Users().UpdateAuthUID(ctx, u.ID, "uid"))
	got, _ := s.Users().FindByEmail(ctx, "a@example.com")
	require.NotNil(t, got.AuthUID)
	assert.Equal(t, "uid", *got.AuthUID)
}

func TestExpenseRepo_CRUD(t *testing.T) {
	s := New()
	repo := s.Expenses()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := model.NewExpense{UserID: 1, Category: "Material", ContractNumber: "0001",
		Value: decimal.RequireFromString("10"), PaymentDate: model.NewDate(2024, 1, 5)}.Build("e1", now)
	second := model.NewExpense{UserID: 2, Category: "Serviço", ContractNumber: "0002",
		Value: decimal.RequireFromString("20"), PaymentDate: model.NewDate(2024, 2, 5)}.Build("e2", now.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, _ := repo.List(ctx, model.ExpenseFilter{})
	require.Len(t, list, 2)
	assert.Equal(t, "e2", list[0].ID)

	owned, _ := repo.List(ctx, model.ExpenseFilter{OwnerIDs: []int64{1}})
	require.Len(t, owned, 1)

	list[0].Category = "mutated"
	fresh, _ := repo.FindByID(ctx, "e2")
	assert.Equal(t, "Serviço", fresh.Category, "returned rows must not alias stored rows")

	cat := model.CancelCategory("Material")
	updated, err := repo.Update(ctx, "e1", model.ExpensePatch{Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, "[CANCELADA] Material", updated.Category)

	missing, err := repo.Update(ctx, "nope", model.ExpensePatch{Category: &cat})
	assert.NoError(t, err)
	assert.Nil(t, missing)

	prior, err := repo.Delete(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", prior.ID)
	gone, _ := repo.FindByID(ctx, "e1")
	assert.Nil(t, gone)
}

func TestSessionRepo_Expiry(t *testing.T) {
	s := New()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	repo := s.Sessions()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Session{ID: "live", UserID: 1, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &model.Session{ID: "dead", UserID: 1, ExpiresAt: now.Add(-time.Hour)}))

	dead, _ := repo.FindByID(ctx, "dead")
	assert.Nil(t, dead)

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteByID(ctx, "live"))
	live, _ := repo.FindByID(ctx, "live")
	assert.Nil(t, live)
}

func TestStore_ConcurrentWrites(t *testing.T) {
	s := New()
	repo := s.Billing()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := model.NewBilling{UserID: 1, Value: decimal.NewFromInt(int64(i))}.Build(fmt.Sprintf("b%d", i), time.Now())
			_ = repo.Create(ctx, b)
			_, _ = repo.List(ctx, model.BillingFilter{})
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx, model.BillingFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 50)
}

func TestLoad_InvalidRole(t *testing.T) {
	s := New()
	err := s.Load([]byte("users:\n  - id: 1\n    email: x@y\n    name: X\n    role: root\n"))
	assert.Error(t, err)
}
