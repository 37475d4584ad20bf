package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/despesas/internal/model"
)

// PostgresExpenseRepo はPostgreSQLを使用した経費リポジトリ。
type PostgresExpenseRepo struct {
	db *sql.DB
}

// NewPostgresExpenseRepo はPostgresExpenseRepoを生成する。
func NewPostgresExpenseRepo(db *sql.DB) *PostgresExpenseRepo {
	return &PostgresExpenseRepo{db: db}
}

const expenseColumns = `id, user_id, contract_number, category, payment_method,
	value, total_value, payment_date, receipt_url, created_at`

func scanExpense(row interface{ Scan(...any) error }) (*model.Expense, error) {
	e := &model.Expense{}
	var receiptURL sql.NullString
	err := row.Scan(
		&e.ID, &e.UserID, &e.ContractNumber, &e.Category, &e.PaymentMethod,
		&e.Value, &e.TotalValue, &e.PaymentDate, &receiptURL, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ReceiptURL = stringPtr(receiptURL)
	return e, nil
}

// expenseWhere は検索条件からWHERE句を組み立てる。
func expenseWhere(filter model.ExpenseFilter) *whereBuilder {
	w := &whereBuilder{}
	w.addOwners(filter.OwnerIDs)
	w.addPeriod("payment_date", filter.Period)
	w.addEquals("category", filter.Category)
	w.addContains("contract_number", filter.ContractNumber)
	w.addEquals("payment_method", filter.PaymentMethod)
	return w
}

// List は検索条件に一致する経費をcreated_at降順で返す。
func (r *PostgresExpenseRepo) List(ctx context.Context, filter model.ExpenseFilter) ([]*model.Expense, error) {
	w := expenseWhere(filter)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses`+w.clause()+` ORDER BY created_at DESC`,
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []*model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// FindByID は指定IDの経費を取得する。見つからない場合はnilを返す。
func (r *PostgresExpenseRepo) FindByID(ctx context.Context, id string) (*model.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find expense: %w", err)
	}
	return e, nil
}

// Create は経費を作成する。
func (r *PostgresExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, contract_number, category, payment_method,
		                       value, total_value, payment_date, receipt_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, e.ContractNumber, e.Category, e.PaymentMethod,
		model.FormatAmount(e.Value), model.FormatAmount(e.TotalValue),
		e.PaymentDate, nullString(e.ReceiptURL), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// Update はパッチに含まれるフィールドのみ更新する。見つからない場合はnilを返す。
func (r *PostgresExpenseRepo) Update(ctx context.Context, id string, patch model.ExpensePatch) (*model.Expense, error) {
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	var s setBuilder
	if patch.ContractNumber != nil {
		s.set("contract_number", *patch.ContractNumber)
	}
	if patch.Category != nil {
		s.set("category", *patch.Category)
	}
	if patch.PaymentMethod != nil {
		s.set("payment_method", *patch.PaymentMethod)
	}
	if patch.Value != nil {
		s.set("value", model.FormatAmount(*patch.Value))
	}
	if patch.TotalValue != nil {
		s.set("total_value", model.FormatAmount(*patch.TotalValue))
	}
	if patch.PaymentDate != nil {
		s.set("payment_date", *patch.PaymentDate)
	}
	if patch.ReceiptURL != nil {
		s.set("receipt_url", nullString(patch.ReceiptURL))
	}
	args := append(s.args, id)

	e, err := scanExpense(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE expenses SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(s.sets, ", "), len(args), expenseColumns),
		args...,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	return e, nil
}

// Delete は経費を物理削除し、削除前の経費を返す。見つからない場合はnilを返す。
func (r *PostgresExpenseRepo) Delete(ctx context.Context, id string) (*model.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`DELETE FROM expenses WHERE id = $1 RETURNING `+expenseColumns, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}
	return e, nil
}

// compile-time interface check
var _ ExpenseRepository = (*PostgresExpenseRepo)(nil)
