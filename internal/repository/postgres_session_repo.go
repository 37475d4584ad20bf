package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/despesas/internal/model"
)

// PostgresSessionRepo はsessionsテーブルのリポジトリ。
// ロールをセッション行に複製して持つため、認証時にusersを参照しない。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

const sessionColumns = `id, user_id, role, expires_at, created_at`

func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.Role, s.ExpiresAt, s.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は有効期限内のセッションを返す。存在しないか期限切れの場合はnil。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&s.ID, &s.UserID, &s.Role, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、件数を返す。cleanupサブコマンドから呼ばれる。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
