// Package budget manages per-category spending limits for children.
package budget

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

type Service struct {
	children *store.ChildStore
	budgets  *store.BudgetStore
	txns     *store.TransactionStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{
		children: store.NewChildStore(db),
		budgets:  store.NewBudgetStore(db),
		txns:     store.NewTransactionStore(db),
		logger:   logger.With("component", "budget"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SetParams struct {
	Category model.Category
	Limit    decimal.Decimal
	Period   model.BudgetPeriod
	Enforce  bool
}

// SetBudget creates or replaces a child's budget for one debit category.
func (s *Service) SetBudget(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, p SetParams) (*model.Budget, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	if !p.Category.IsSpending() {
		return nil, apperr.Invalid("category", "%q is not a spending category", p.Category)
	}
	limit := p.Limit.Round(2)
	if !limit.IsPositive() {
		return nil, apperr.Invalid("limit", "must be greater than zero")
	}
	if p.Period == "" {
		p.Period = model.PeriodWeekly
	}
	if p.Period != model.PeriodWeekly && p.Period != model.PeriodMonthly {
		return nil, apperr.Invalid("period", "must be Weekly or Monthly")
	}

	b, err := s.budgets.Upsert(ctx, &model.Budget{
		ChildID:     childID,
		Category:    p.Category,
		LimitAmount: limit,
		Period:      p.Period,
		Enforce:     p.Enforce,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("budget set", "child_id", childID, "category", p.Category, "limit", limit.String())
	return b, nil
}

func (s *Service) ListBudgets(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) ([]model.Budget, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	return s.budgets.ListByChild(ctx, childID)
}

func (s *Service) DeleteBudget(ctx context.Context, ac auth.AuthContext, id uuid.UUID) error {
	if err := ac.RequireParent(); err != nil {
		return err
	}
	b, err := s.budgets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b == nil {
		return apperr.ErrNotFound
	}
	if _, err := ac.LoadChild(ctx, s.children, b.ChildID); err != nil {
		return err
	}
	return s.budgets.Delete(ctx, id)
}

// Status reports spending against every budget for the current period.
func (s *Service) Status(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) ([]model.BudgetStatus, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	budgets, err := s.budgets.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	statuses := make([]model.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		start, end := PeriodBounds(b.Period, now)
		spent, err := Spent(ctx, s.txns, childID, b.Category, start, end)
		if err != nil {
			return nil, err
		}
		remaining := b.LimitAmount.Sub(spent)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		statuses = append(statuses, model.BudgetStatus{
			Budget:      b,
			PeriodStart: start,
			PeriodEnd:   end,
			Spent:       spent,
			Remaining:   remaining,
			OverBudget:  spent.GreaterThan(b.LimitAmount),
		})
	}
	return statuses, nil
}

// Spent sums the debits in one category within [start, end).
func Spent(ctx context.Context, txns *store.TransactionStore, childID uuid.UUID, category model.Category, start, end time.Time) (decimal.Decimal, error) {
	rows, err := txns.ListByCategorySince(ctx, childID, category, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range rows {
		if t.Type == model.Debit {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// Check returns apperr.ErrLimitExceeded when a debit of amount would push
// spending in an enforced budget past its limit. Both stores must share
// the caller's transaction.
func Check(ctx context.Context, budgets *store.BudgetStore, txns *store.TransactionStore, childID uuid.UUID, category model.Category, amount decimal.Decimal, now time.Time) error {
	b, err := budgets.GetByCategory(ctx, childID, category)
	if err != nil {
		return err
	}
	if b == nil || !b.Enforce {
		return nil
	}
	start, end := PeriodBounds(b.Period, now)
	spent, err := Spent(ctx, txns, childID, category, start, end)
	if err != nil {
		return err
	}
	if spent.Add(amount).GreaterThan(b.LimitAmount) {
		return fmt.Errorf("%w: %s budget of %s per %s, %s already spent",
			apperr.ErrLimitExceeded, category, b.LimitAmount.StringFixed(2), periodNoun(b.Period), spent.StringFixed(2))
	}
	return nil
}

func periodNoun(p model.BudgetPeriod) string {
	if p == model.PeriodMonthly {
		return "month"
	}
	return "week"
}
