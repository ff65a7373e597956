package allowance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
)

// LastDue returns midnight UTC of the most recent allowance day at or
// before now.
func LastDue(day time.Weekday, now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(now.Weekday()) - int(day) + 7) % 7
	return today.AddDate(0, 0, -back)
}

// IsDue reports whether a payout is owed: the allowance day must have
// arrived after the last payout, or after the child was created when
// nothing has been paid yet.
func IsDue(c *model.Child, now time.Time) bool {
	if c.AllowancePaused || !c.WeeklyAllowance.IsPositive() {
		return false
	}
	since := c.CreatedAt
	if c.LastAllowanceAt != nil {
		since = *c.LastAllowanceAt
	}
	due := LastDue(c.AllowanceDay, now)
	return due.After(since)
}

// PayDueAllowances credits every child whose allowance is due and returns
// the number paid. Running it again for the same now pays nothing.
func (s *Service) PayDueAllowances(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.children.ListAllowanceCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list allowance candidates: %w", err)
	}

	paid := 0
	for _, c := range candidates {
		if !IsDue(&c, now) {
			continue
		}
		txn, child, err := s.pay(ctx, c.ID, now)
		if err != nil {
			s.logger.Error("pay allowance", "child_id", c.ID, "error", err)
			continue
		}
		if txn == nil {
			continue
		}
		paid++
		s.logger.Info("allowance paid", "child_id", c.ID, "amount", txn.Amount.String())
		if err := s.notifier.NotifyChild(ctx, child, model.NotifAllowancePaid, "Allowance paid",
			fmt.Sprintf("Your weekly allowance of %s has arrived.", txn.Amount.StringFixed(2)),
			map[string]any{"transaction_id": txn.ID, "amount": txn.Amount},
		); err != nil {
			s.logger.Error("allowance paid notification", "child_id", c.ID, "error", err)
		}
	}
	return paid, nil
}

// pay re-checks the child inside the transaction so concurrent runs pay
// at most once. A nil transaction means nothing was owed.
func (s *Service) pay(ctx context.Context, childID uuid.UUID, now time.Time) (*model.Transaction, *model.Child, error) {
	var txn *model.Transaction
	var child *model.Child
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		children := s.children.WithTx(tx)
		c, err := children.GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if c == nil || !IsDue(c, now) {
			return nil
		}
		txn, child, err = s.ledger.Post(ctx, tx, ledger.Entry{
			ChildID:     c.ID,
			Amount:      c.WeeklyAllowance,
			Type:        model.Credit,
			Category:    model.CategoryAllowance,
			Description: "Weekly allowance",
		})
		if err != nil {
			return err
		}
		return children.SetLastAllowanceAt(ctx, c.ID, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return txn, child, nil
}
