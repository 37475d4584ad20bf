package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/despesas/internal/model"
)

// PostgresBillingRepo はPostgreSQLを使用した請求リポジトリ。
type PostgresBillingRepo struct {
	db *sql.DB
}

// NewPostgresBillingRepo はPostgresBillingRepoを生成する。
func NewPostgresBillingRepo(db *sql.DB) *PostgresBillingRepo {
	return &PostgresBillingRepo{db: db}
}

const billingColumns = `id, user_id, contract_number, client_name, description,
	value, issue_date, due_date, payment_date, status, created_at`

func scanBilling(row interface{ Scan(...any) error }) (*model.Billing, error) {
	b := &model.Billing{}
	var paymentDate model.Date
	err := row.Scan(
		&b.ID, &b.UserID, &b.ContractNumber, &b.ClientName, &b.Description,
		&b.Value, &b.IssueDate, &b.DueDate, &paymentDate, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !paymentDate.IsZero() {
		b.PaymentDate = &paymentDate
	}
	return b, nil
}

func billingWhere(filter model.BillingFilter) *whereBuilder {
	w := &whereBuilder{}
	w.addOwners(filter.OwnerIDs)
	w.addPeriod("issue_date", filter.Period)
	w.addEquals("status", string(filter.Status))
	w.addContains("contract_number", filter.ContractNumber)
	return w
}

// List は検索条件に一致する請求をcreated_at降順で返す。
func (r *PostgresBillingRepo) List(ctx context.Context, filter model.BillingFilter) ([]*model.Billing, error) {
	w := billingWhere(filter)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+billingColumns+` FROM billing`+w.clause()+` ORDER BY created_at DESC`,
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing: %w", err)
	}
	defer rows.Close()

	list := []*model.Billing{}
	for rows.Next() {
		b, err := scanBilling(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate billing: %w", err)
	}
	return list, nil
}

// FindByID は指定IDの請求を取得する。見つからない場合はnilを返す。
func (r *PostgresBillingRepo) FindByID(ctx context.Context, id string) (*model.Billing, error) {
	b, err := scanBilling(r.db.QueryRowContext(ctx,
		`SELECT `+billingColumns+` FROM billing WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find billing: %w", err)
	}
	return b, nil
}

// Create は請求を作成する。
func (r *PostgresBillingRepo) Create(ctx context.Context, b *model.Billing) error {
	var paymentDate any
	if b.PaymentDate != nil {
		paymentDate = *b.PaymentDate
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO billing (id, user_id, contract_number, client_name, description,
		                      value, issue_date, due_date, payment_date, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.UserID, b.ContractNumber, b.ClientName, b.Description,
		model.FormatAmount(b.Value), b.IssueDate, b.DueDate, paymentDate, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert billing: %w", err)
	}
	return nil
}

// Update はパッチに含まれるフィールドのみ更新する。見つからない場合はnilを返す。
func (r *PostgresBillingRepo) Update(ctx context.Context, id string, patch model.BillingPatch) (*model.Billing, error) {
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	var s setBuilder
	if patch.ContractNumber != nil {
		s.set("contract_number", *patch.ContractNumber)
	}
	if patch.ClientName != nil {
		s.set("client_name", *patch.ClientName)
	}
	if patch.Description != nil {
		s.set("description", *patch.Description)
	}
	if patch.Value != nil {
		s.set("value", model.FormatAmount(*patch.Value))
	}
	if patch.IssueDate != nil {
		s.set("issue_date", *patch.IssueDate)
	}
	if patch.DueDate != nil {
		s.set("due_date", *patch.DueDate)
	}
	if patch.PaymentDate != nil {
		s.set("payment_date", *patch.PaymentDate)
	}
	if patch.Status != nil {
		s.set("status", string(*patch.Status))
	}
	args := append(s.args, id)

	b, err := scanBilling(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE billing SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(s.sets, ", "), len(args), billingColumns),
		args...,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update billing: %w", err)
	}
	return b, nil
}

// Delete は請求を物理削除し、削除前の請求を返す。見つからない場合はnilを返す。
func (r *PostgresBillingRepo) Delete(ctx context.Context, id string) (*model.Billing, error) {
	b, err := scanBilling(r.db.QueryRowContext(ctx,
		`DELETE FROM billing WHERE id = $1 RETURNING `+billingColumns, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete billing: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ BillingRepository = (*PostgresBillingRepo)(nil)
