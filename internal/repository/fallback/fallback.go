// Package fallback はPostgreSQL到達不能時にインメモリストアへ切り替えるリポジトリを提供する。
//
// 接続系のエラーを一度でも検出するとプロセスの残り期間はdegraded状態となり、
// 以降の読み書きは全てインメモリストアで処理される。キャッシュやリトライではない。
package fallback

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/lib/pq"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

// Storage名
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Health はストレージの切り替え状態を保持する。
type Health struct {
	degraded  atomic.Bool
	logger    *slog.Logger
	onDegrade func()
}

// NewHealth はHealthを生成する。onDegradeはdegraded遷移時に1回だけ呼ばれる。
func NewHealth(logger *slog.Logger, onDegrade func()) *Health {
	return &Health{logger: logger, onDegrade: onDegrade}
}

// Degraded はインメモリストアで動作中かどうかを返す。
func (h *Health) Degraded() bool {
	return h.degraded.Load()
}

// Storage は現在のストレージ名を返す。
func (h *Health) Storage() string {
	if h.Degraded() {
		return StorageMemory
	}
	return StoragePostgres
}

// MarkDegraded はdegraded状態へ遷移する。既に遷移済みの場合は何もしない。
func (h *Health) MarkDegraded(cause error) {
	if !h.degraded.CompareAndSwap(false, true) {
		return
	}
	attrs := []any{slog.String("storage", StorageMemory)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	h.logger.Warn("storage degraded to memory fallback; writes will be lost on restart", attrs...)
	if h.onDegrade != nil {
		h.onDegrade()
	}
}

// IsConnectionError はDBへの到達不能を示すエラーかどうかを返す。
// SQLエラーや制約違反など、DBが応答した結果のエラーはfalseとなる。
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// リクエスト側のタイムアウトやキャンセルはDB障害ではない
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		// 08: connection_exception, 57P: operator_intervention (shutdown等)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// call はdegradedでなければprimaryを呼び、接続系エラーの場合はfallbackへ切り替える。
func call[T any](h *Health, primary, fallback func() (T, error)) (T, error) {
	if h.Degraded() {
		return fallback()
	}
	v, err := primary()
	if err != nil && IsConnectionError(err) {
		h.MarkDegraded(err)
		return fallback()
	}
	return v, err
}

// exec は戻り値がerrorのみの操作に対するcallの変形。
func exec(h *Health, primary, fallback func() error) error {
	_, err := call(h,
		func() (struct{}, error) { return struct{}{}, primary() },
		func() (struct{}, error) { return struct{}{}, fallback() },
	)
	return err
}

// ---------------------------------------------------------------------------

// UserRepo はフォールバック付きのユーザーリポジトリ。
type UserRepo struct {
	primary  repository.UserRepository
	fallback repository.UserRepository
	health   *Health
}

// NewUserRepo はUserRepoを生成する。
func NewUserRepo(primary, fallback repository.UserRepository, health *Health) *UserRepo {
	return &UserRepo{primary: primary, fallback: fallback, health: health}
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return call(r.health,
		func() (*model.User, error) { return r.primary.FindByID(ctx, id) },
		func() (*model.User, error) { return r.fallback.FindByID(ctx, id) })
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return call(r.health,
		func() (*model.User, error) { return r.primary.FindByEmail(ctx, email) },
		func() (*model.User, error) { return r.fallback.FindByEmail(ctx, email) })
}

func (r *UserRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	return call(r.health,
		func() ([]*model.User, error) { return r.primary.ListByRole(ctx, role) },
		func() ([]*model.User, error) { return r.fallback.ListByRole(ctx, role) })
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	return exec(r.health,
		func() error { return r.primary.Create(ctx, user) },
		func() error { return r.fallback.Create(ctx, user) })
}

func (r *UserRepo) UpdateAuthUID(ctx context.Context, id int64, authUID string) error {
	return exec(r.health,
		func() error { return r.primary.UpdateAuthUID(ctx, id, authUID) },
		func() error { return r.fallback.UpdateAuthUID(ctx, id, authUID) })
}

// ---------------------------------------------------------------------------

// SessionRepo はフォールバック付きのセッションリポジトリ。
type SessionRepo struct {
	primary  repository.SessionRepository
	fallback repository.SessionRepository
	health   *Health
}

// NewSessionRepo はSessionRepoを生成する。
func NewSessionRepo(primary, fallback repository.SessionRepository, health *Health) *SessionRepo {
	return &SessionRepo{primary: primary, fallback: fallback, health: health}
}

func (r *SessionRepo) Create(ctx context.Context, session *model.Session) error {
	return exec(r.health,
		func() error { return r.primary.Create(ctx, session) },
		func() error { return r.fallback.Create(ctx, session) })
}

func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return call(r.health,
		func() (*model.Session, error) { return r.primary.FindByID(ctx, id) },
		func() (*model.Session, error) { return r.fallback.FindByID(ctx, id) })
}

func (r *SessionRepo) DeleteByID(ctx context.Context, id string) error {
	return exec(r.health,
		func() error { return r.primary.DeleteByID(ctx, id) },
		func() error { return r.fallback.DeleteByID(ctx, id) })
}

func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return call(r.health,
		func() (int64, error) { return r.primary.DeleteExpired(ctx) },
		func() (int64, error) { return r.fallback.DeleteExpired(ctx) })
}

// ---------------------------------------------------------------------------

// ExpenseRepo はフォールバック付きの経費リポジトリ。
type ExpenseRepo struct {
	primary  repository.ExpenseRepository
	fallback repository.ExpenseRepository
	health   *Health
}

// NewExpenseRepo はExpenseRepoを生成する。
func NewExpenseRepo(primary, fallback repository.ExpenseRepository, health *Health) *ExpenseRepo {
	return &ExpenseRepo{primary: primary, fallback: fallback, health: health}
}

func (r *ExpenseRepo) List(ctx context.Context, filter model.ExpenseFilter) ([]*model.Expense, error) {
	return call(r.health,
		func() ([]*model.Expense, error) { return r.primary.List(ctx, filter) },
		func() ([]*model.Expense, error) { return r.fallback.List(ctx, filter) })
}

func (r *ExpenseRepo) FindByID(ctx context.Context, id string) (*model.Expense, error) {
	return call(r.health,
		func() (*model.Expense, error) { return r.primary.FindByID(ctx, id) },
		func() (*model.Expense, error) { return r.fallback.FindByID(ctx, id) })
}

func (r *ExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	return exec(r.health,
		func() error { return r.primary.Create(ctx, e) },
		func() error { return r.fallback.Create(ctx, e) })
}

func (r *ExpenseRepo) Update(ctx context.Context, id string, patch model.ExpensePatch) (*model.Expense, error) {
	return call(r.health,
		func() (*model.Expense, error) { return r.primary.Update(ctx, id, patch) },
		func() (*model.Expense, error) { return r.fallback.Update(ctx, id, patch) })
}

func (r *ExpenseRepo) Delete(ctx context.Context, id string) (*model.Expense, error) {
	return call(r.health,
		func() (*model.Expense, error) { return r.primary.Delete(ctx, id) },
		func() (*model.Expense, error) { return r.fallback.Delete(ctx, id) })
}

// ---------------------------------------------------------------------------

// BillingRepo はフォールバック付きの請求リポジトリ。
type BillingRepo struct {
	primary  repository.BillingRepository
	fallback repository.BillingRepository
	health   *Health
}

// NewBillingRepo はBillingRepoを生成する。
func NewBillingRepo(primary, fallback repository.BillingRepository, health *Health) *BillingRepo {
	return &BillingRepo{primary: primary, fallback: fallback, health: health}
}

func (r *BillingRepo) List(ctx context.Context, filter model.BillingFilter) ([]*model.Billing, error) {
	return call(r.health,
		func() ([]*model.Billing, error) { return r.primary.List(ctx, filter) },
		func() ([]*model.Billing, error) { return r.fallback.List(ctx, filter) })
}

func (r *BillingRepo) FindByID(ctx context.Context, id string) (*model.Billing, error) {
	return call(r.health,
		func() (*model.Billing, error) { return r.primary.FindByID(ctx, id) },
		func() (*model.Billing, error) { return r.fallback.FindByID(ctx, id) })
}

func (r *BillingRepo) Create(ctx context.Context, b *model.Billing) error {
	return exec(r.health,
		func() error { return r.primary.Create(ctx, b) },
		func() error { return r.fallback.Create(ctx, b) })
}

func (r *BillingRepo) Update(ctx context.Context, id string, patch model.BillingPatch) (*model.Billing, error) {
	return call(r.health,
		func() (*model.Billing, error) { return r.primary.Update(ctx, id, patch) },
		func() (*model.Billing, error) { return r.fallback.Update(ctx, id, patch) })
}

func (r *BillingRepo) Delete(ctx context.Context, id string) (*model.Billing, error) {
	return call(r.health,
		func() (*model.Billing, error) { return r.primary.Delete(ctx, id) },
		func() (*model.Billing, error) { return r.fallback.Delete(ctx, id) })
}

// compile-time interface checks
var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.SessionRepository = (*SessionRepo)(nil)
	_ repository.ExpenseRepository = (*ExpenseRepo)(nil)
	_ repository.BillingRepository = (*BillingRepo)(nil)
)
