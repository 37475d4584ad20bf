package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/despesas/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, role, auth_uid, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var authUID sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &authUID, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.AuthUID = stringPtr(authUID)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// ListByRole は指定ロールのユーザー一覧をID昇順で返す。
func (r *PostgresUserRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	var w whereBuilder
	w.addEquals("role", string(role))

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+w.clause()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, role, auth_uid)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		user.Email, user.Name, user.Role, nullString(user.AuthUID),
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateAuthUID は外部IdPのユーザーIDを更新する。
func (r *PostgresUserRepo) UpdateAuthUID(ctx context.Context, id int64, authUID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET auth_uid = $1 WHERE id = $2`, authUID, id)
	if err != nil {
		return fmt.Errorf("failed to update auth uid: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
