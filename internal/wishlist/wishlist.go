// Package wishlist manages the things a child wants to buy and turns them
// into savings goals.
package wishlist

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/savings"
	"github.com/dukerupert/allowance/internal/store"
)

type Service struct {
	db       *sql.DB
	children *store.ChildStore
	items    *store.WishListStore
	savings  *savings.Service
	logger   *slog.Logger
}

func NewService(db *sql.DB, savings *savings.Service, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		children: store.NewChildStore(db),
		items:    store.NewWishListStore(db),
		savings:  savings,
		logger:   logger.With("component", "wishlist"),
	}
}

type Params struct {
	Name  string
	Price decimal.Decimal
	URL   string
	Notes string
}

func (p *Params) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Invalid("name", "is required")
	}
	price, err := ledger.NormalizeAmount("price", p.Price)
	if err != nil {
		return err
	}
	p.Price = price
	p.URL = strings.TrimSpace(p.URL)
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.Invalid("url", "must be an http or https link")
		}
	}
	p.Notes = strings.TrimSpace(p.Notes)
	return nil
}

func (p Params) storeParams() store.WishListParams {
	return store.WishListParams{Name: p.Name, Price: p.Price, URL: p.URL, Notes: p.Notes}
}

func (s *Service) loadItem(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.WishListItem, error) {
	w, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.ErrNotFound
	}
	if _, err := ac.LoadChild(ctx, s.children, w.ChildID); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Create(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, p Params) (*model.WishListItem, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.items.Create(ctx, childID, p.storeParams())
}

func (s *Service) List(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) ([]model.WishListItem, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	return s.items.ListByChild(ctx, childID)
}

func (s *Service) Update(ctx context.Context, ac auth.AuthContext, id uuid.UUID, p Params) (*model.WishListItem, error) {
	w, err := s.loadItem(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if w.Purchased {
		return nil, apperr.State("item is already purchased")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, id, p.storeParams()); err != nil {
		return nil, err
	}
	return s.items.GetByID(ctx, id)
}

func (s *Service) MarkPurchased(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.WishListItem, error) {
	w, err := s.loadItem(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if w.Purchased {
		return nil, apperr.State("item is already purchased")
	}
	if err := s.items.MarkPurchased(ctx, id); err != nil {
		return nil, err
	}
	w.Purchased = true
	return w, nil
}

func (s *Service) Delete(ctx context.Context, ac auth.AuthContext, id uuid.UUID) error {
	if _, err := s.loadItem(ctx, ac, id); err != nil {
		return err
	}
	return s.items.Delete(ctx, id)
}

// ConvertToGoal creates a savings goal named and priced after the item and
// links the two.
func (s *Service) ConvertToGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	w, err := s.loadItem(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if w.Purchased {
		return nil, apperr.State("item is already purchased")
	}
	if w.GoalID != nil {
		return nil, apperr.State("item already has a savings goal")
	}

	var g *model.SavingsGoal
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		g, err = s.savings.CreateGoalTx(ctx, tx, w.ChildID, savings.GoalParams{
			Name:         w.Name,
			Description:  w.Notes,
			TargetAmount: w.Price,
		})
		if err != nil {
			return err
		}
		return s.items.WithTx(tx).LinkGoal(ctx, w.ID, g.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wish list item converted", "item_id", w.ID, "goal_id", g.ID)
	return g, nil
}
