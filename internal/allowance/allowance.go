// Package allowance administers children's weekly allowances: pausing,
// resuming and changing the amount, each with an audit row, and paying
// allowances as they fall due.
package allowance

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

type Notifier interface {
	NotifyChild(ctx context.Context, child *model.Child, typ model.NotifType, title, body string, data any) error
}

type Service struct {
	db          *sql.DB
	children    *store.ChildStore
	adjustments *store.AdjustmentStore
	ledger      *ledger.Service
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(db *sql.DB, ledger *ledger.Service, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		children:    store.NewChildStore(db),
		adjustments: store.NewAdjustmentStore(db),
		ledger:      ledger,
		notifier:    notifier,
		logger:      logger.With("component", "allowance"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// change loads a child for a parent and runs fn with tx-bound stores. The
// child passed to fn is read inside the transaction.
func (s *Service) change(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, fn func(children *store.ChildStore, adjustments *store.AdjustmentStore, child *model.Child) error) error {
	if err := ac.RequireParent(); err != nil {
		return err
	}
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return err
	}
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		children := s.children.WithTx(tx)
		child, err := children.GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return apperr.ErrNotFound
		}
		return fn(children, s.adjustments.WithTx(tx), child)
	})
}

func (s *Service) PauseAllowance(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, reason string) (*model.AllowanceAdjustment, error) {
	adj := &model.AllowanceAdjustment{ChildID: childID, Type: model.AdjustmentPaused, Reason: strings.TrimSpace(reason), ActorID: ac.Actor()}
	err := s.change(ctx, ac, childID, func(children *store.ChildStore, adjustments *store.AdjustmentStore, child *model.Child) error {
		if child.AllowancePaused {
			return apperr.State("allowance is already paused")
		}
		if err := children.SetAllowancePaused(ctx, childID, true); err != nil {
			return err
		}
		return adjustments.Create(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allowance paused", "child_id", childID)
	return adj, nil
}

func (s *Service) ResumeAllowance(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, reason string) (*model.AllowanceAdjustment, error) {
	adj := &model.AllowanceAdjustment{ChildID: childID, Type: model.AdjustmentResumed, Reason: strings.TrimSpace(reason), ActorID: ac.Actor()}
	err := s.change(ctx, ac, childID, func(children *store.ChildStore, adjustments *store.AdjustmentStore, child *model.Child) error {
		if !child.AllowancePaused {
			return apperr.State("allowance is not paused")
		}
		if err := children.SetAllowancePaused(ctx, childID, false); err != nil {
			return err
		}
		return adjustments.Create(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allowance resumed", "child_id", childID)
	return adj, nil
}

// AdjustAllowanceAmount changes the weekly amount. Zero stops payouts
// without pausing.
func (s *Service) AdjustAllowanceAmount(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, amount decimal.Decimal, reason string) (*model.AllowanceAdjustment, error) {
	amount = amount.Round(2)
	if amount.IsNegative() {
		return nil, apperr.Invalid("amount", "must not be negative")
	}

	adj := &model.AllowanceAdjustment{ChildID: childID, Type: model.AdjustmentAmountChanged, Reason: strings.TrimSpace(reason), ActorID: ac.Actor()}
	err := s.change(ctx, ac, childID, func(children *store.ChildStore, adjustments *store.AdjustmentStore, child *model.Child) error {
		if child.WeeklyAllowance.Equal(amount) {
			return apperr.Invalid("amount", "is unchanged")
		}
		old := child.WeeklyAllowance
		adj.OldAmount = &old
		adj.NewAmount = &amount
		if err := children.SetWeeklyAllowance(ctx, childID, amount); err != nil {
			return err
		}
		return adjustments.Create(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allowance adjusted", "child_id", childID, "old", adj.OldAmount.String(), "new", amount.String())
	return adj, nil
}

func (s *Service) ListAdjustments(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) ([]model.AllowanceAdjustment, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	return s.adjustments.ListByChild(ctx, childID)
}
