// Package billing は請求レコードの登録・状態更新・集計を提供する。
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
	"github.com/hitoshi/despesas/internal/security"
	"github.com/hitoshi/despesas/internal/stats"
)

const resourceName = "Cobrança"

// Service は請求のサービス層。
type Service struct {
	repo      repository.BillingRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.BillingRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List はPrincipalが参照可能な請求を検索条件で絞り込んで返す。
func (s *Service) List(ctx context.Context, p model.Principal, filter model.BillingFilter) ([]*model.Billing, error) {
	filter.OwnerIDs = p.OwnerIDs()
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("請求一覧の取得に失敗しました: %w", err)
	}
	return rows, nil
}

// Create は請求を登録する。状態が未指定の場合はpendenteになる。
func (s *Service) Create(ctx context.Context, p model.Principal, in model.NewBilling) (*model.Billing, error) {
	in.UserID = p.UserID
	in.ContractNumber = s.sanitizer.SanitizeText(in.ContractNumber)
	in.ClientName = s.sanitizer.SanitizeText(in.ClientName)
	in.Description = s.sanitizer.SanitizeText(in.Description)

	fields := model.RequireNonEmpty(
		"contractNumber", in.ContractNumber,
		"clientName", in.ClientName,
	)
	if in.Status != "" && !in.Status.IsValid() {
		fields = append(fields, model.FieldError{Field: "status", Message: "status inválido"})
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError("Dados de cobrança inválidos", fields...)
	}

	b := in.Build(uuid.NewString(), s.now())
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("請求の登録に失敗しました: %w", err)
	}

	slog.Info("billing created",
		slog.String("billing_id", b.ID),
		slog.Int64("user_id", b.UserID),
		slog.String("status", string(b.Status)),
	)
	return b, nil
}

// Update は請求を部分更新する。管理者のみ実行できる。
func (s *Service) Update(ctx context.Context, p model.Principal, id string, patch model.BillingPatch) (*model.Billing, error) {
	if !p.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	patch.ContractNumber = s.sanitizePtr(patch.ContractNumber)
	patch.ClientName = s.sanitizePtr(patch.ClientName)
	patch.Description = s.sanitizePtr(patch.Description)

	var fields []model.FieldError
	if patch.ContractNumber != nil && *patch.ContractNumber == "" {
		fields = append(fields, model.FieldError{Field: "contractNumber", Message: "não pode ser vazio"})
	}
	if patch.ClientName != nil && *patch.ClientName == "" {
		fields = append(fields, model.FieldError{Field: "clientName", Message: "não pode ser vazio"})
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		fields = append(fields, model.FieldError{Field: "status", Message: "status inválido"})
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError("Dados de cobrança inválidos", fields...)
	}

	b, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("請求の更新に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	slog.Info("billing updated", slog.String("billing_id", id), slog.Int64("by_user_id", p.UserID))
	return b, nil
}

// Cancel は請求の状態をcanceladoにする。管理者のみ実行できる。
func (s *Service) Cancel(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
	status := model.BillingCancelled
	b, err := s.Update(ctx, p, id, model.BillingPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	slog.Info("billing cancelled", slog.String("billing_id", id))
	return b, nil
}

// Delete は請求を物理削除し、削除前の請求を返す。管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, p model.Principal, id string) (*model.Billing, error) {
	if !p.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	b, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("請求の削除に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewNotFoundError(resourceName, id)
	}

	slog.Info("billing deleted", slog.String("billing_id", id), slog.Int64("by_user_id", p.UserID))
	return b, nil
}

// Stats は状態別の請求合計を返す。管理者のみ実行でき、全ユーザーの請求を対象とする。
func (s *Service) Stats(ctx context.Context, p model.Principal, period model.Period) (stats.BillingStats, error) {
	if !p.IsAdmin() {
		return stats.BillingStats{}, model.NewForbiddenError()
	}
	rows, err := s.repo.List(ctx, model.BillingFilter{Period: period})
	if err != nil {
		return stats.BillingStats{}, fmt.Errorf("請求集計に失敗しました: %w", err)
	}
	return stats.ByBillingStatus(rows), nil
}

func (s *Service) sanitizePtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := s.sanitizer.SanitizeText(*v)
	return &out
}
