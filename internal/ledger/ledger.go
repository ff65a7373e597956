// Package ledger owns every change to a child's balance. Each change is an
// append-only transaction row carrying the balance after the change.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/budget"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// LowBalanceThreshold is the balance below which a debit raises a low
// balance notification.
var LowBalanceThreshold = decimal.NewFromInt(5)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Notifier delivers a notification to a child and their parents.
type Notifier interface {
	NotifyChild(ctx context.Context, child *model.Child, typ model.NotifType, title, body string, data any) error
}

type Service struct {
	db       *sql.DB
	children *store.ChildStore
	txns     *store.TransactionStore
	budgets  *store.BudgetStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	listeners []func(childID uuid.UUID)
}

func NewService(db *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		children: store.NewChildStore(db),
		txns:     store.NewTransactionStore(db),
		budgets:  store.NewBudgetStore(db),
		notifier: notifier,
		logger:   logger.With("component", "ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to be called with the child id after every posted
// transaction.
func (s *Service) OnChange(fn func(childID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) changed(childID uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn(childID)
	}
}

// Entry describes one balance change.
type Entry struct {
	ChildID     uuid.UUID
	Amount      decimal.Decimal
	Type        model.TransactionType
	Category    model.Category
	Description string
	CreatedBy   *uuid.UUID
	// Strict refuses to overdraw even when the child allows debt.
	Strict bool
}

// NormalizeAmount rounds to cents and rejects non-positive amounts.
func NormalizeAmount(field string, d decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, apperr.Invalid(field, "must be greater than zero")
	}
	return d, nil
}

// Post applies e inside tx: it validates the entry, checks funds and
// budgets, swaps the stored balance and appends the ledger row. It returns
// the new row and the child as it was before the change.
func (s *Service) Post(ctx context.Context, tx *sql.Tx, e Entry) (*model.Transaction, *model.Child, error) {
	amount, err := NormalizeAmount("amount", e.Amount)
	if err != nil {
		return nil, nil, err
	}
	if !e.Type.Valid() {
		return nil, nil, apperr.Invalid("type", "must be Credit or Debit")
	}
	if !e.Category.ValidFor(e.Type) {
		return nil, nil, apperr.Invalid("category", "%q is not a %s category", e.Category, e.Type)
	}

	children := s.children.WithTx(tx)
	txns := s.txns.WithTx(tx)

	child, err := children.GetByID(ctx, e.ChildID)
	if err != nil {
		return nil, nil, err
	}
	if child == nil {
		return nil, nil, apperr.ErrNotFound
	}

	now := s.now()
	newBalance := child.Balance.Add(amount)
	if e.Type == model.Debit {
		newBalance = child.Balance.Sub(amount)
		if amount.GreaterThan(child.Balance) && (e.Strict || !child.AllowDebt) {
			return nil, nil, fmt.Errorf("%w: balance %s, debit %s",
				apperr.ErrInsufficientFunds, child.Balance.StringFixed(2), amount.StringFixed(2))
		}
		if err := budget.Check(ctx, s.budgets.WithTx(tx), txns, child.ID, e.Category, amount, now); err != nil {
			return nil, nil, err
		}
	}

	if err := children.UpdateBalance(ctx, child.ID, child.Balance, newBalance); err != nil {
		if errors.Is(err, store.ErrStaleBalance) {
			return nil, nil, fmt.Errorf("%w: balance changed concurrently", apperr.ErrConflict)
		}
		return nil, nil, err
	}

	t := &model.Transaction{
		ChildID:      child.ID,
		Amount:       amount,
		Type:         e.Type,
		Category:     e.Category,
		Description:  e.Description,
		BalanceAfter: newBalance,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    now,
	}
	if err := txns.Create(ctx, t); err != nil {
		return nil, nil, err
	}

	s.changed(child.ID)
	return t, child, nil
}

type CreateParams struct {
	ChildID     uuid.UUID
	Amount      decimal.Decimal
	Type        model.TransactionType
	Category    model.Category
	Description string
}

// CreateTransaction records a manual credit or debit. Parents may post
// either; children may only record their own spending.
func (s *Service) CreateTransaction(ctx context.Context, ac auth.AuthContext, p CreateParams) (*model.Transaction, error) {
	child, err := ac.LoadChild(ctx, s.children, p.ChildID)
	if err != nil {
		return nil, err
	}
	if !ac.IsParent() && p.Type != model.Debit {
		return nil, apperr.ErrForbidden
	}

	var t *model.Transaction
	var before *model.Child
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, before, err = s.Post(ctx, tx, Entry{
			ChildID:     child.ID,
			Amount:      p.Amount,
			Type:        p.Type,
			Category:    p.Category,
			Description: p.Description,
			CreatedBy:   ac.Actor(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction posted",
		"child_id", t.ChildID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount.String(),
		"balance_after", t.BalanceAfter.String(),
	)

	if t.Type == model.Debit && !before.Balance.LessThan(LowBalanceThreshold) && t.BalanceAfter.LessThan(LowBalanceThreshold) {
		body := fmt.Sprintf("%s's balance is down to %s.", before.Name, t.BalanceAfter.StringFixed(2))
		if err := s.notifier.NotifyChild(ctx, before, model.NotifLowBalance, "Low balance", body, map[string]any{
			"child_id": t.ChildID,
			"balance":  t.BalanceAfter,
		}); err != nil {
			s.logger.Error("low balance notification", "child_id", t.ChildID, "error", err)
		}
	}
	return t, nil
}

func (s *Service) GetTransaction(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	if _, err := ac.LoadChild(ctx, s.children, t.ChildID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions pages through a child's ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, limit, offset int) ([]model.Transaction, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.txns.ListByChild(ctx, childID, limit, offset)
}
