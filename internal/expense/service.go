// Package expense は経費の登録・更新・キャンセル・集計のドメインロジックを提供する。
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
	"github.com/hitoshi/despesas/internal/security"
	"github.com/hitoshi/despesas/internal/stats"
)

const resourceName = "Despesa"

// Service は経費のサービス層。
// 一覧・集計は常にPrincipalのowner-setで絞り込む。
type Service struct {
	repo      repository.ExpenseRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ExpenseRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List はPrincipalが参照可能な経費を検索条件で絞り込んで返す。
func (s *Service) List(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]*model.Expense, error) {
	filter.OwnerIDs = p.OwnerIDs()
	expenses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("経費一覧の取得に失敗しました: %w", err)
	}
	return expenses, nil
}

// Get は経費を1件返す。他ユーザーの経費は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, p model.Principal, id string) (*model.Expense, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(e.UserID) {
		return nil, model.NewNotFoundError(resourceName, id)
	}
	return e, nil
}

// Create は経費を登録する。所有者は常にリクエストしたユーザーになる。
func (s *Service) Create(ctx context.Context, p model.Principal, in model.NewExpense) (*model.Expense, error) {
	in.UserID = p.UserID
	in.ContractNumber = s.sanitizer.SanitizeText(in.ContractNumber)
	in.Category = s.sanitizer.SanitizeText(in.Category)
	in.PaymentMethod = s.sanitizer.SanitizeText(in.PaymentMethod)

	if fields := model.RequireNonEmpty(
		"contractNumber", in.ContractNumber,
		"category", in.Category,
		"paymentMethod", in.PaymentMethod,
	); len(fields) > 0 {
		return nil, model.NewValidationError("Dados de despesa inválidos", fields...)
	}

	e := in.Build(uuid.NewString(), s.now())
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("経費の登録に失敗しました: %w", err)
	}

	slog.Info("expense created",
		slog.String("expense_id", e.ID),
		slog.Int64("user_id", e.UserID),
		slog.String("contract_number", e.ContractNumber),
	)
	return e, nil
}

// Update は経費を部分更新する。管理者のみ実行できる。
func (s *Service) Update(ctx context.Context, p model.Principal, id string, patch model.ExpensePatch) (*model.Expense, error) {
	if !p.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	patch.ContractNumber = s.sanitizePtr(patch.ContractNumber)
	patch.Category = s.sanitizePtr(patch.Category)
	patch.PaymentMethod = s.sanitizePtr(patch.PaymentMethod)

	var fields []model.FieldError
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"contractNumber", patch.ContractNumber},
		{"category", patch.Category},
		{"paymentMethod", patch.PaymentMethod},
	} {
		if f.value != nil && *f.value == "" {
			fields = append(fields, model.FieldError{Field: f.name, Message: "não pode ser vazio"})
		}
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError("Dados de despesa inválidos", fields...)
	}

	e, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("経費の更新に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	slog.Info("expense updated", slog.String("expense_id", id), slog.Int64("by_user_id", p.UserID))
	return e, nil
}

// Delete は経費を物理削除し、削除前の経費を返す。管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, p model.Principal, id string) (*model.Expense, error) {
	if !p.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	e, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("経費の削除に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	slog.Info("expense deleted", slog.String("expense_id", id), slog.Int64("by_user_id", p.UserID))
	return e, nil
}

// Cancel はカテゴリにキャンセル接頭辞を付与する。
// 所有者または管理者のみ実行でき、繰り返し実行しても接頭辞は1つのまま。
func (s *Service) Cancel(ctx context.Context, p model.Principal, id string) (*model.Expense, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(e.UserID) {
		return nil, model.NewForbiddenError()
	}
	if e.IsCancelled() {
		return e, nil
	}

	category := model.CancelCategory(e.Category)
	updated, err := s.repo.Update(ctx, id, model.ExpensePatch{Category: &category})
	if err != nil {
		return nil, fmt.Errorf("経費のキャンセルに失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	slog.Info("expense cancelled", slog.String("expense_id", id), slog.Int64("by_user_id", p.UserID))
	return updated, nil
}

// CategoryStats はカテゴリ別の合計と件数を返す。
func (s *Service) CategoryStats(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.CategoryStat, error) {
	expenses, err := s.List(ctx, p, filter)
	if err != nil {
		return nil, err
	}
	return stats.ByCategory(expenses), nil
}

// PaymentMethodStats は支払方法別の件数を返す。
func (s *Service) PaymentMethodStats(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.PaymentMethodStat, error) {
	expenses, err := s.List(ctx, p, filter)
	if err != nil {
		return nil, err
	}
	return stats.ByPaymentMethod(expenses), nil
}

// MonthlyTrend は月別の合計を時系列順に返す。
func (s *Service) MonthlyTrend(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.MonthlyTotal, error) {
	expenses, err := s.List(ctx, p, filter)
	if err != nil {
		return nil, err
	}
	return stats.MonthlyTrend(expenses), nil
}

// ContractBreakdown は契約番号別の内訳を合計の降順で返す。
func (s *Service) ContractBreakdown(ctx context.Context, p model.Principal, filter model.ExpenseFilter) ([]stats.ContractBreakdown, error) {
	expenses, err := s.List(ctx, p, filter)
	if err != nil {
		return nil, err
	}
	return stats.ByContract(expenses), nil
}

// Overview はダッシュボードのサマリーを返す。
// 全期間と当月分の取得は並行して行う。
func (s *Service) Overview(ctx context.Context, p model.Principal) (stats.Overview, error) {
	now := s.now()
	owners := p.OwnerIDs()

	var all, thisMonth []*model.Expense
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.repo.List(gctx, model.ExpenseFilter{OwnerIDs: owners})
		return err
	})
	g.Go(func() error {
		var err error
		thisMonth, err = s.repo.List(gctx, model.ExpenseFilter{
			OwnerIDs: owners,
			Period:   model.Period{Year: now.Year(), Month: int(now.Month())},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return stats.Overview{}, fmt.Errorf("サマリーの集計に失敗しました: %w", err)
	}

	if thisMonth == nil {
		thisMonth = []*model.Expense{}
	}
	return stats.Summarize(all, thisMonth, now), nil
}

// find はIDで経費を取得する。UUIDでないIDや存在しないIDはNotFoundを返す。
func (s *Service) find(ctx context.Context, id string) (*model.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("経費の取得に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}
	return e, nil
}

func (s *Service) sanitizePtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := s.sanitizer.SanitizeText(*v)
	return &out
}
