// Package user はユーザー参照のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

// Service はユーザー参照のサービス層。
// ユーザーの作成はauth.Service.Signupが担う。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetUser は指定IDのユーザーを返す。
// 経費一覧で所有者名を表示するため、認証済みであれば他ユーザーも参照できる。
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// ListByRole は指定ロールのユーザー一覧を返す。roleが空の場合は全ユーザー。
// 管理者のみ実行できる。
func (s *Service) ListByRole(ctx context.Context, p model.Principal, role model.Role) ([]*model.User, error) {
	if !p.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if role != "" && !role.IsValid() {
		return nil, model.NewValidationError("Função inválida",
			model.FieldError{Field: "role", Message: "deve ser admin ou user"})
	}

	users, err := s.userRepo.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
