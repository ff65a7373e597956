package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/model"
)

type BudgetStore struct {
	q DBTX
}

func NewBudgetStore(q DBTX) *BudgetStore {
	return &BudgetStore{q: q}
}

func (s *BudgetStore) WithTx(tx *sql.Tx) *BudgetStore {
	return &BudgetStore{q: tx}
}

func scanBudget(scanner interface{ Scan(...any) error }) (*model.Budget, error) {
	var b model.Budget
	err := scanner.Scan(&b.ID, &b.ChildID, &b.Category, &b.LimitAmount, &b.Period, &b.Enforce, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const budgetCols = `id, child_id, category, limit_amount, period, enforce, created_at, updated_at`

// Upsert creates or replaces the child's budget for b.Category.
func (s *BudgetStore) Upsert(ctx context.Context, b *model.Budget) (*model.Budget, error) {
	ts := now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (child_id, category) DO UPDATE SET
		   limit_amount = excluded.limit_amount,
		   period = excluded.period,
		   enforce = excluded.enforce,
		   updated_at = excluded.updated_at`,
		uuid.New(), b.ChildID, b.Category, b.LimitAmount, b.Period, boolInt(b.Enforce), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return s.GetByCategory(ctx, b.ChildID, b.Category)
}

func (s *BudgetStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+budgetCols+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (s *BudgetStore) GetByCategory(ctx context.Context, childID uuid.UUID, category model.Category) (*model.Budget, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetCols+` FROM budgets WHERE child_id = ? AND category = ?`,
		childID, category,
	)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget by category: %w", err)
	}
	return b, nil
}

func (s *BudgetStore) ListByChild(ctx context.Context, childID uuid.UUID) ([]model.Budget, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+budgetCols+` FROM budgets WHERE child_id = ? ORDER BY category ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *BudgetStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}
