// Package analytics builds per-child money summaries. Summaries are held
// in a ristretto cache until the ledger changes for that child.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// Window is how far back a summary looks.
const Window = 30 * 24 * time.Hour

type Service struct {
	children *store.ChildStore
	txns     *store.TransactionStore
	goals    *store.GoalStore
	tasks    *store.TaskStore
	cache    *ristretto.Cache
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	gen map[uuid.UUID]uint64
}

// NewService creates the service and its cache. maxCost bounds the number
// of cached summaries.
func NewService(db *sql.DB, maxCost int64, logger *slog.Logger) (*Service, error) {
	if maxCost <= 0 {
		maxCost = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		// Cost counts summaries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}
	return &Service{
		children: store.NewChildStore(db),
		txns:     store.NewTransactionStore(db),
		goals:    store.NewGoalStore(db),
		tasks:    store.NewTaskStore(db),
		cache:    cache,
		logger:   logger.With("component", "analytics"),
		now:      func() time.Time { return time.Now().UTC() },
		gen:      make(map[uuid.UUID]uint64),
	}, nil
}

func (s *Service) Close() {
	s.cache.Close()
}

// Invalidate drops the cached summary for a child. It is registered as a
// ledger change listener.
func (s *Service) Invalidate(childID uuid.UUID) {
	s.mu.Lock()
	s.gen[childID]++
	s.mu.Unlock()
	s.cache.Del(childID.String())
}

func (s *Service) generation(childID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[childID]
}

// Summary returns the child's overview for the last Window.
func (s *Service) Summary(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) (*model.Summary, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}

	key := childID.String()
	if v, ok := s.cache.Get(key); ok {
		if sum, ok := v.(*model.Summary); ok {
			return sum, nil
		}
	}

	gen := s.generation(childID)
	sum, err := s.build(ctx, childID)
	if err != nil {
		return nil, err
	}
	// A write that landed while building bumps the generation; caching
	// then would keep a stale summary.
	if s.generation(childID) == gen {
		s.cache.Set(key, sum, 1)
		s.cache.Wait()
	}
	return sum, nil
}

func (s *Service) build(ctx context.Context, childID uuid.UUID) (*model.Summary, error) {
	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	to := s.now()
	from := to.Add(-Window)

	rows, err := s.txns.ListSince(ctx, childID, from)
	if err != nil {
		return nil, err
	}
	goals, err := s.goals.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	approved, err := s.tasks.CountApprovedSince(ctx, childID, from)
	if err != nil {
		return nil, err
	}

	sum := &model.Summary{
		ChildID:       childID,
		From:          from,
		To:            to,
		Balance:       child.Balance,
		TasksApproved: approved,
	}
	aggregate(sum, rows)
	for _, g := range goals {
		switch g.Status {
		case model.GoalActive, model.GoalPaused:
			sum.ActiveGoals++
			sum.SavedInGoals = sum.SavedInGoals.Add(g.CurrentAmount).Add(g.Surplus)
		case model.GoalCompleted:
			sum.CompletedGoals++
			sum.SavedInGoals = sum.SavedInGoals.Add(g.CurrentAmount).Add(g.Surplus)
		case model.GoalPurchased:
			sum.CompletedGoals++
		}
	}
	return sum, nil
}

// aggregate fills totals and category breakdowns. Moves between the main
// balance and goals appear per category but are neither earned nor spent.
func aggregate(sum *model.Summary, rows []model.Transaction) {
	spending := map[model.Category]*model.CategoryTotal{}
	earnings := map[model.Category]*model.CategoryTotal{}
	sum.TotalEarned = decimal.Zero
	sum.TotalSpent = decimal.Zero

	for _, t := range rows {
		bucket := earnings
		if t.Type == model.Debit {
			bucket = spending
		}
		ct, ok := bucket[t.Category]
		if !ok {
			ct = &model.CategoryTotal{Category: t.Category, Total: decimal.Zero}
			bucket[t.Category] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++

		switch {
		case t.Category == model.CategorySavings || t.Category == model.CategorySavingsWithdrawal:
		case t.Type == model.Debit:
			sum.TotalSpent = sum.TotalSpent.Add(t.Amount)
		default:
			sum.TotalEarned = sum.TotalEarned.Add(t.Amount)
		}
	}
	sum.Net = sum.TotalEarned.Sub(sum.TotalSpent)
	sum.SpendingByCat = sorted(spending)
	sum.EarningsByCat = sorted(earnings)
}

func sorted(m map[model.Category]*model.CategoryTotal) []model.CategoryTotal {
	out := make([]model.CategoryTotal, 0, len(m))
	for _, ct := range m {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
