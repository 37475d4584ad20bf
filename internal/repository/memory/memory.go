// Package memory はDB到達不能時に使用するプロセス内のリポジトリ実装を提供する。
// 書き込みはメモリ上にのみ保持され、プロセス再起動で失われる。
package memory

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

//go:embed seed.yaml
var seedYAML []byte

// Store は全エンティティのインメモリ保持領域。
// 各リポジトリはStoreのビューとして動作し、同じミューテックスを共有する。
type Store struct {
	mu         sync.RWMutex
	users      []*model.User
	nextUserID int64
	sessions   map[string]*model.Session
	expenses   []*model.Expense
	billing    []*model.Billing
	now        func() time.Time
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{
		nextUserID: 1,
		sessions:   make(map[string]*model.Session),
		now:        time.Now,
	}
}

// NewSeeded は埋め込みのサンプルデータを投入したStoreを生成する。
func NewSeeded() (*Store, error) {
	s := New()
	if err := s.Load(seedYAML); err != nil {
		return nil, err
	}
	return s, nil
}

type seedFile struct {
	Users []struct {
		ID    int64  `yaml:"id"`
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
		Role  string `yaml:"role"`
	} `yaml:"users"`
	Expenses []struct {
		UserID         int64  `yaml:"user_id"`
		ContractNumber string `yaml:"contract_number"`
		Category       string `yaml:"category"`
		PaymentMethod  string `yaml:"payment_method"`
		Value          string `yaml:"value"`
		TotalValue     string `yaml:"total_value"`
		PaymentDate    string `yaml:"payment_date"`
	} `yaml:"expenses"`
	Billing []struct {
		UserID         int64  `yaml:"user_id"`
		ContractNumber string `yaml:"contract_number"`
		ClientName     string `yaml:"client_name"`
		Description    string `yaml:"description"`
		Value          string `yaml:"value"`
		IssueDate      string `yaml:"issue_date"`
		DueDate        string `yaml:"due_date"`
		Status         string `yaml:"status"`
	} `yaml:"billing"`
}

// Load はYAML形式のサンプルデータを追加投入する。
// 作成日時はファイル内の並び順が新しい順になるよう1分ずつずらして割り当てる。
func (s *Store) Load(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.now()
	for _, u := range seed.Users {
		role := model.Role(u.Role)
		if !role.IsValid() {
			return fmt.Errorf("seed user %s: invalid role %q", u.Email, u.Role)
		}
		s.users = append(s.users, &model.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: role, CreatedAt: base})
		if u.ID >= s.nextUserID {
			s.nextUserID = u.ID + 1
		}
	}

	for i, e := range seed.Expenses {
		value, err := model.ParseAmount(e.Value)
		if err != nil {
			return fmt.Errorf("seed expense %d: value: %w", i, err)
		}
		n := model.NewExpense{
			UserID:         e.UserID,
			ContractNumber: e.ContractNumber,
			Category:       e.Category,
			PaymentMethod:  e.PaymentMethod,
			Value:          value,
		}
		if e.TotalValue != "" {
			total, err := model.ParseAmount(e.TotalValue)
			if err != nil {
				return fmt.Errorf("seed expense %d: total_value: %w", i, err)
			}
			n.TotalValue = &total
		}
		if n.PaymentDate, err = model.ParseDate(e.PaymentDate); err != nil {
			return fmt.Errorf("seed expense %d: %w", i, err)
		}
		s.expenses = append(s.expenses, n.Build(uuid.NewString(), base.Add(-time.Duration(i)*time.Minute)))
	}

	for i, b := range seed.Billing {
		value, err := model.ParseAmount(b.Value)
		if err != nil {
			return fmt.Errorf("seed billing %d: value: %w", i, err)
		}
		n := model.NewBilling{
			UserID:         b.UserID,
			ContractNumber: b.ContractNumber,
			ClientName:     b.ClientName,
			Description:    b.Description,
			Value:          value,
			Status:         model.BillingStatus(b.Status),
		}
		if n.IssueDate, err = model.ParseDate(b.IssueDate); err != nil {
			return fmt.Errorf("seed billing %d: %w", i, err)
		}
		if n.DueDate, err = model.ParseDate(b.DueDate); err != nil {
			return fmt.Errorf("seed billing %d: %w", i, err)
		}
		s.billing = append(s.billing, n.Build(uuid.NewString(), base.Add(-time.Duration(i)*time.Minute)))
	}
	return nil
}

// Users はユーザーリポジトリのビューを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Sessions はセッションリポジトリのビューを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Expenses は経費リポジトリのビューを返す。
func (s *Store) Expenses() *ExpenseRepo { return &ExpenseRepo{s: s} }

// Billing は請求リポジトリのビューを返す。
func (s *Store) Billing() *BillingRepo { return &BillingRepo{s: s} }

// newestFirst はcreated_at降順の比較関数。
func newestFirst(a, b time.Time) int {
	return b.Compare(a)
}

// ---------------------------------------------------------------------------
// Users

// UserRepo はインメモリのユーザーリポジトリ。
type UserRepo struct{ s *Store }

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.AuthUID != nil {
		uid := *u.AuthUID
		c.AuthUID = &uid
	}
	return &c
}

func (r *UserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepo) ListByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.User{}
	for _, u := range r.s.users {
		if role == "" || u.Role == role {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.s.nextUserID
	r.s.nextUserID++
	user.CreatedAt = r.s.now()
	r.s.users = append(r.s.users, cloneUser(user))
	return nil
}

func (r *UserRepo) UpdateAuthUID(_ context.Context, id int64, authUID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID == id {
			uid := authUID
			u.AuthUID = &uid
			return nil
		}
	}
	return fmt.Errorf("user not found: %d", id)
}

// ---------------------------------------------------------------------------
// Sessions

// SessionRepo はインメモリのセッションリポジトリ。
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *session
	r.s.sessions[session.ID] = &c
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(r.s.now()) {
		return nil, nil
	}
	c := *sess
	return &c, nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Expenses

// ExpenseRepo はインメモリの経費リポジトリ。
type ExpenseRepo struct{ s *Store }

func cloneExpense(e *model.Expense) *model.Expense {
	c := *e
	if e.ReceiptURL != nil {
		url := *e.ReceiptURL
		c.ReceiptURL = &url
	}
	return &c
}

func (r *ExpenseRepo) indexOf(id string) int {
	return slices.IndexFunc(r.s.expenses, func(e *model.Expense) bool { return e.ID == id })
}

func (r *ExpenseRepo) List(_ context.Context, filter model.ExpenseFilter) ([]*model.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Expense{}
	for _, e := range r.s.expenses {
		if filter.Matches(e) {
			out = append(out, cloneExpense(e))
		}
	}
	slices.SortStableFunc(out, func(a, b *model.Expense) int { return newestFirst(a.CreatedAt, b.CreatedAt) })
	return out, nil
}

func (r *ExpenseRepo) FindByID(_ context.Context, id string) (*model.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return cloneExpense(r.s.expenses[i]), nil
	}
	return nil, nil
}

func (r *ExpenseRepo) Create(_ context.Context, e *model.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.expenses = append(r.s.expenses, cloneExpense(e))
	return nil
}

func (r *ExpenseRepo) Update(_ context.Context, id string, patch model.ExpensePatch) (*model.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	patch.Apply(r.s.expenses[i])
	return cloneExpense(r.s.expenses[i]), nil
}

func (r *ExpenseRepo) Delete(_ context.Context, id string) (*model.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	prior := r.s.expenses[i]
	r.s.expenses = slices.Delete(r.s.expenses, i, i+1)
	return prior, nil
}

// ---------------------------------------------------------------------------
// Billing

// BillingRepo はインメモリの請求リポジトリ。
type BillingRepo struct{ s *Store }

func cloneBilling(b *model.Billing) *model.Billing {
	c := *b
	if b.PaymentDate != nil {
		d := *b.PaymentDate
		c.PaymentDate = &d
	}
	return &c
}

func (r *BillingRepo) indexOf(id string) int {
	return slices.IndexFunc(r.s.billing, func(b *model.Billing) bool { return b.ID == id })
}

func (r *BillingRepo) List(_ context.Context, filter model.BillingFilter) ([]*model.Billing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Billing{}
	for _, b := range r.s.billing {
		if filter.Matches(b) {
			out = append(out, cloneBilling(b))
		}
	}
	slices.SortStableFunc(out, func(a, b *model.Billing) int { return newestFirst(a.CreatedAt, b.CreatedAt) })
	return out, nil
}

func (r *BillingRepo) FindByID(_ context.Context, id string) (*model.Billing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return cloneBilling(r.s.billing[i]), nil
	}
	return nil, nil
}

func (r *BillingRepo) Create(_ context.Context, b *model.Billing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.billing = append(r.s.billing, cloneBilling(b))
	return nil
}

func (r *BillingRepo) Update(_ context.Context, id string, patch model.BillingPatch) (*model.Billing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	patch.Apply(r.s.billing[i])
	return cloneBilling(r.s.billing[i]), nil
}

func (r *BillingRepo) Delete(_ context.Context, id string) (*model.Billing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	prior := r.s.billing[i]
	r.s.billing = slices.Delete(r.s.billing, i, i+1)
	return prior, nil
}

// compile-time interface checks
var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.SessionRepository = (*SessionRepo)(nil)
	_ repository.ExpenseRepository = (*ExpenseRepo)(nil)
	_ repository.BillingRepository = (*BillingRepo)(nil)
)
