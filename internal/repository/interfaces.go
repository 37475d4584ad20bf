// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/despesas/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ListByRole は指定ロールのユーザー一覧を返す。roleが空の場合は全件を返す。
	ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateAuthUID は外部IdPのユーザーIDを更新する。
	UpdateAuthUID(ctx context.Context, id int64, authUID string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ExpenseRepository は経費データの永続化インターフェース。
type ExpenseRepository interface {
	// List は検索条件に一致する経費をcreated_at降順で返す。
	List(ctx context.Context, filter model.ExpenseFilter) ([]*model.Expense, error)

	// FindByID は指定IDの経費を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Expense, error)

	// Create は経費を作成する。
	Create(ctx context.Context, expense *model.Expense) error

	// Update はパッチに含まれるフィールドのみ更新し、更新後の経費を返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.ExpensePatch) (*model.Expense, error)

	// Delete は経費を物理削除し、削除前の経費を返す。見つからない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Expense, error)
}

// BillingRepository は請求データの永続化インターフェース。
type BillingRepository interface {
	// List は検索条件に一致する請求をcreated_at降順で返す。
	List(ctx context.Context, filter model.BillingFilter) ([]*model.Billing, error)

	// FindByID は指定IDの請求を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Billing, error)

	// Create は請求を作成する。
	Create(ctx context.Context, billing *model.Billing) error

	// Update はパッチに含まれるフィールドのみ更新し、更新後の請求を返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.BillingPatch) (*model.Billing, error)

	// Delete は請求を物理削除し、削除前の請求を返す。見つからない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Billing, error)
}
