// Package savings implements savings goals: contributions and withdrawals
// between a child's main balance and a goal, matching rules, challenges
// and milestone tracking.
package savings

import (
	"context"
	"database/sql"
	"fmt"
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
	db       *sql.DB
	children *store.ChildStore
	goals    *store.GoalStore
	ledger   *ledger.Service
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, ledger *ledger.Service, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		children: store.NewChildStore(db),
		goals:    store.NewGoalStore(db),
		ledger:   ledger,
		notifier: notifier,
		logger:   logger.With("component", "savings"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// loadGoal fetches a goal and checks the caller may see its child.
func (s *Service) loadGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, *model.Child, error) {
	g, err := s.goals.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, apperr.ErrNotFound
	}
	child, err := ac.LoadChild(ctx, s.children, g.ChildID)
	if err != nil {
		return nil, nil, err
	}
	return g, child, nil
}

// reload re-reads a goal inside tx so checks see the locked state.
func reload(ctx context.Context, goals *store.GoalStore, id uuid.UUID) (*model.SavingsGoal, error) {
	g, err := goals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.ErrNotFound
	}
	return g, nil
}

// --- Goal CRUD ---

type GoalParams struct {
	Name         string
	Description  string
	TargetAmount decimal.Decimal
	ImageURL     string
}

func (p *GoalParams) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Invalid("name", "is required")
	}
	target, err := ledger.NormalizeAmount("target_amount", p.TargetAmount)
	if err != nil {
		return err
	}
	p.TargetAmount = target
	return nil
}

func (s *Service) CreateGoal(ctx context.Context, ac auth.AuthContext, childID uuid.UUID, p GoalParams) (*model.SavingsGoal, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var g *model.SavingsGoal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		g, err = s.CreateGoalTx(ctx, tx, childID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("goal created", "goal_id", g.ID, "child_id", childID, "target", g.TargetAmount.String())
	return g, nil
}

// CreateGoalTx inserts a goal and its milestones inside an existing transaction.
func (s *Service) CreateGoalTx(ctx context.Context, tx *sql.Tx, childID uuid.UUID, p GoalParams) (*model.SavingsGoal, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	goals := s.goals.WithTx(tx)
	g, err := goals.Create(ctx, childID, p.Name, p.Description, p.TargetAmount, p.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := goals.CreateMilestones(ctx, g.ID, MilestonePercents); err != nil {
		return nil, err
	}
	g.Milestones, err = goals.ListMilestones(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGoal returns a goal with its matching rule, active challenge and milestones.
func (s *Service) GetGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	g, _, err := s.loadGoal(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if g.MatchingRule, err = s.goals.GetMatchingRule(ctx, g.ID); err != nil {
		return nil, err
	}
	if g.Challenge, err = s.goals.GetActiveChallenge(ctx, g.ID); err != nil {
		return nil, err
	}
	if g.Milestones, err = s.goals.ListMilestones(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) ListGoals(ctx context.Context, ac auth.AuthContext, childID uuid.UUID) ([]model.SavingsGoal, error) {
	if _, err := ac.LoadChild(ctx, s.children, childID); err != nil {
		return nil, err
	}
	return s.goals.ListByChild(ctx, childID)
}

func (s *Service) ListGoalTransactions(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID) ([]model.GoalTransaction, error) {
	if _, _, err := s.loadGoal(ctx, ac, goalID); err != nil {
		return nil, err
	}
	return s.goals.ListTransactions(ctx, goalID)
}

// UpdateGoal changes a goal's details. Changing the target is parent-only
// and rebalances the goal between current amount and surplus so current
// never exceeds target.
func (s *Service) UpdateGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID, p GoalParams) (*model.SavingsGoal, error) {
	existing, _, err := s.loadGoal(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !existing.TargetAmount.Equal(p.TargetAmount) {
		if err := ac.RequireParent(); err != nil {
			return nil, err
		}
	}

	var g *model.SavingsGoal
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		var err error
		g, err = reload(ctx, goals, id)
		if err != nil {
			return err
		}
		if g.Status == model.GoalPurchased || g.Status == model.GoalCancelled {
			return apperr.State("goal is %s", g.Status)
		}
		if !g.TargetAmount.Equal(p.TargetAmount) {
			if err := ac.RequireParent(); err != nil {
				return err
			}
		}
		if err := goals.UpdateDetails(ctx, id, p.Name, p.Description, p.TargetAmount, p.ImageURL); err != nil {
			return err
		}
		g.Name, g.Description, g.ImageURL = p.Name, p.Description, p.ImageURL

		if g.TargetAmount.Equal(p.TargetAmount) {
			return nil
		}
		g.TargetAmount = p.TargetAmount
		total := g.CurrentAmount.Add(g.Surplus)
		g.CurrentAmount = decimal.Min(total, g.TargetAmount)
		g.Surplus = total.Sub(g.CurrentAmount)

		c, err := goals.GetActiveChallenge(ctx, g.ID)
		if err != nil {
			return err
		}
		if c != nil && c.TargetAmount.GreaterThan(g.TargetAmount) {
			if err := goals.SetChallengeStatus(ctx, c.ID, model.ChallengeCancelled, nil); err != nil {
				return err
			}
		}

		now := s.now()
		switch {
		case g.Status == model.GoalActive && !g.CurrentAmount.LessThan(g.TargetAmount):
			g.Status = model.GoalCompleted
			g.CompletedAt = &now
			if err := cancelActiveChallenge(ctx, goals, g.ID); err != nil {
				return err
			}
		case g.Status == model.GoalCompleted && g.CurrentAmount.LessThan(g.TargetAmount):
			g.Status = model.GoalActive
			g.CompletedAt = nil
		}
		if err := goals.SaveState(ctx, g); err != nil {
			return err
		}
		_, err = markMilestones(ctx, goals, g, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) PauseGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	return s.transition(ctx, ac, id, model.GoalActive, model.GoalPaused)
}

func (s *Service) ResumeGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	return s.transition(ctx, ac, id, model.GoalPaused, model.GoalActive)
}

func (s *Service) transition(ctx context.Context, ac auth.AuthContext, id uuid.UUID, from, to model.GoalStatus) (*model.SavingsGoal, error) {
	if _, _, err := s.loadGoal(ctx, ac, id); err != nil {
		return nil, err
	}
	var g *model.SavingsGoal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		var err error
		g, err = reload(ctx, goals, id)
		if err != nil {
			return err
		}
		if g.Status != from {
			return apperr.State("goal is %s, not %s", g.Status, from)
		}
		g.Status = to
		return goals.SaveState(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CancelGoal refunds the goal's current amount and surplus to the main
// balance, matched money included, and closes the goal. Parent-only.
func (s *Service) CancelGoal(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	if _, _, err := s.loadGoal(ctx, ac, id); err != nil {
		return nil, err
	}
	var g *model.SavingsGoal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		var err error
		g, err = reload(ctx, goals, id)
		if err != nil {
			return err
		}
		if g.Status == model.GoalPurchased || g.Status == model.GoalCancelled {
			return apperr.State("goal is already %s", g.Status)
		}

		refund := g.CurrentAmount.Add(g.Surplus)
		if refund.IsPositive() {
			if err := s.refund(ctx, tx, g, refund, "Refund from cancelled goal: "+g.Name, ac.Actor()); err != nil {
				return err
			}
		}
		g.CurrentAmount = decimal.Zero
		g.Surplus = decimal.Zero
		g.Status = model.GoalCancelled
		if err := goals.SaveState(ctx, g); err != nil {
			return err
		}

		if err := cancelActiveChallenge(ctx, goals, g.ID); err != nil {
			return err
		}
		rule, err := goals.GetMatchingRule(ctx, g.ID)
		if err != nil {
			return err
		}
		if rule != nil && rule.Active {
			rule.Active = false
			return goals.SaveMatchingRule(ctx, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("goal cancelled", "goal_id", g.ID)
	return g, nil
}

// MarkPurchased closes a completed goal and returns any surplus to the
// main balance. Parent-only.
func (s *Service) MarkPurchased(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	if _, _, err := s.loadGoal(ctx, ac, id); err != nil {
		return nil, err
	}
	var g *model.SavingsGoal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		var err error
		g, err = reload(ctx, goals, id)
		if err != nil {
			return err
		}
		if g.Status != model.GoalCompleted {
			return apperr.State("goal is %s, not Completed", g.Status)
		}
		if g.Surplus.IsPositive() {
			if err := s.refund(ctx, tx, g, g.Surplus, "Surplus from goal: "+g.Name, ac.Actor()); err != nil {
				return err
			}
		}
		g.Surplus = decimal.Zero
		g.Status = model.GoalPurchased
		return goals.SaveState(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("goal purchased", "goal_id", g.ID)
	return g, nil
}

func (s *Service) refund(ctx context.Context, tx *sql.Tx, g *model.SavingsGoal, amount decimal.Decimal, desc string, actor *uuid.UUID) error {
	t, _, err := s.ledger.Post(ctx, tx, ledger.Entry{
		ChildID:     g.ChildID,
		Amount:      amount,
		Type:        model.Credit,
		Category:    model.CategoryRefund,
		Description: desc,
		CreatedBy:   actor,
	})
	if err != nil {
		return err
	}
	return s.goals.WithTx(tx).AddTransaction(ctx, &model.GoalTransaction{
		GoalID:              g.ID,
		Amount:              amount,
		Type:                model.GoalRefund,
		Description:         desc,
		LedgerTransactionID: &t.ID,
		CreatedBy:           actor,
	})
}

func cancelActiveChallenge(ctx context.Context, goals *store.GoalStore, goalID uuid.UUID) error {
	c, err := goals.GetActiveChallenge(ctx, goalID)
	if err != nil || c == nil {
		return err
	}
	return goals.SetChallengeStatus(ctx, c.ID, model.ChallengeCancelled, nil)
}

// --- Contributions ---

// ContributionResult describes everything a contribution changed.
type ContributionResult struct {
	Goal        *model.SavingsGoal   `json:"goal"`
	Transaction *model.Transaction   `json:"transaction"`
	Matched     decimal.Decimal      `json:"matched"`
	Milestone   int                  `json:"milestone,omitempty"`
	Completed   bool                 `json:"completed"`
	Challenge   *model.GoalChallenge `json:"challenge,omitempty"`
	Bonus       *model.Transaction   `json:"bonus,omitempty"`
}

// ContributeToGoal moves money from the main balance into an Active goal.
// The full amount is debited; anything beyond the goal's remaining amount
// is held as surplus.
func (s *Service) ContributeToGoal(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID, amount decimal.Decimal, description string) (*ContributionResult, error) {
	amount, err := ledger.NormalizeAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	_, child, err := s.loadGoal(ctx, ac, goalID)
	if err != nil {
		return nil, err
	}

	res := &ContributionResult{Matched: decimal.Zero}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		g, err := reload(ctx, goals, goalID)
		if err != nil {
			return err
		}
		if g.Status != model.GoalActive {
			return apperr.State("goal is %s", g.Status)
		}
		now := s.now()

		desc := description
		if desc == "" {
			desc = "Contribution to " + g.Name
		}
		debit, _, err := s.ledger.Post(ctx, tx, ledger.Entry{
			ChildID:     g.ChildID,
			Amount:      amount,
			Type:        model.Debit,
			Category:    model.CategorySavings,
			Description: desc,
			CreatedBy:   ac.Actor(),
			Strict:      true,
		})
		if err != nil {
			return err
		}
		res.Transaction = debit

		toGoal := decimal.Min(amount, g.Remaining())
		g.CurrentAmount = g.CurrentAmount.Add(toGoal)
		g.Surplus = g.Surplus.Add(amount.Sub(toGoal))
		if err := goals.AddTransaction(ctx, &model.GoalTransaction{
			GoalID:              g.ID,
			Amount:              amount,
			Type:                model.GoalContribution,
			Description:         desc,
			LedgerTransactionID: &debit.ID,
			CreatedBy:           ac.Actor(),
			CreatedAt:           now,
		}); err != nil {
			return err
		}

		if err := s.applyMatch(ctx, goals, g, amount, res, now); err != nil {
			return err
		}

		if !g.CurrentAmount.LessThan(g.TargetAmount) {
			g.Status = model.GoalCompleted
			g.CompletedAt = &now
			res.Completed = true
		}
		if err := goals.SaveState(ctx, g); err != nil {
			return err
		}

		if res.Milestone, err = markMilestones(ctx, goals, g, now); err != nil {
			return err
		}
		if err := s.evaluateChallenge(ctx, tx, g, res, now); err != nil {
			return err
		}
		res.Goal = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("goal contribution",
		"goal_id", goalID,
		"amount", amount.String(),
		"matched", res.Matched.String(),
		"current", res.Goal.CurrentAmount.String(),
		"status", res.Goal.Status,
	)
	s.announce(ctx, child, res)
	return res, nil
}

func (s *Service) applyMatch(ctx context.Context, goals *store.GoalStore, g *model.SavingsGoal, amount decimal.Decimal, res *ContributionResult, now time.Time) error {
	rule, err := goals.GetMatchingRule(ctx, g.ID)
	if err != nil {
		return err
	}
	match := matchAmount(rule, amount, g.Remaining(), now)
	if !match.IsPositive() {
		return nil
	}

	g.CurrentAmount = g.CurrentAmount.Add(match)
	rule.TotalMatched = rule.TotalMatched.Add(match)
	if rule.MaxMatchAmount.IsPositive() && !rule.TotalMatched.LessThan(rule.MaxMatchAmount) {
		rule.Active = false
	}
	if err := goals.SaveMatchingRule(ctx, rule); err != nil {
		return err
	}
	res.Matched = match
	return goals.AddTransaction(ctx, &model.GoalTransaction{
		GoalID:      g.ID,
		Amount:      match,
		Type:        model.GoalMatch,
		Description: fmt.Sprintf("%s match", rule.MatchType),
		CreatedBy:   rule.CreatedBy,
		CreatedAt:   now,
	})
}

// evaluateChallenge fails an expired challenge, completes a met one and
// credits its bonus, and cancels one left active by a completed goal.
func (s *Service) evaluateChallenge(ctx context.Context, tx *sql.Tx, g *model.SavingsGoal, res *ContributionResult, now time.Time) error {
	goals := s.goals.WithTx(tx)
	c, err := goals.GetActiveChallenge(ctx, g.ID)
	if err != nil || c == nil {
		return err
	}

	switch {
	case now.After(c.EndDate):
		c.Status = model.ChallengeFailed
	case !g.CurrentAmount.LessThan(c.TargetAmount):
		c.Status = model.ChallengeCompleted
		c.CompletedAt = &now
		if c.BonusAmount.IsPositive() {
			desc := "Challenge bonus: " + g.Name
			bonus, _, err := s.ledger.Post(ctx, tx, ledger.Entry{
				ChildID:     g.ChildID,
				Amount:      c.BonusAmount,
				Type:        model.Credit,
				Category:    model.CategoryBonusReward,
				Description: desc,
				CreatedBy:   c.CreatedBy,
			})
			if err != nil {
				return err
			}
			res.Bonus = bonus
			if err := goals.AddTransaction(ctx, &model.GoalTransaction{
				GoalID:              g.ID,
				Amount:              c.BonusAmount,
				Type:                model.GoalBonus,
				Description:         desc,
				LedgerTransactionID: &bonus.ID,
				CreatedBy:           c.CreatedBy,
				CreatedAt:           now,
			}); err != nil {
				return err
			}
		}
	case g.Status == model.GoalCompleted:
		c.Status = model.ChallengeCancelled
	default:
		return nil
	}

	if err := goals.SetChallengeStatus(ctx, c.ID, c.Status, c.CompletedAt); err != nil {
		return err
	}
	res.Challenge = c
	return nil
}

func (s *Service) announce(ctx context.Context, child *model.Child, res *ContributionResult) {
	g := res.Goal
	data := map[string]any{"goal_id": g.ID, "child_id": g.ChildID}

	var err error
	switch {
	case res.Completed:
		err = s.notifier.NotifyChild(ctx, child, model.NotifGoalCompleted, "Goal reached!",
			fmt.Sprintf("%s saved %s for %s.", child.Name, g.TargetAmount.StringFixed(2), g.Name), data)
	case res.Milestone > 0:
		data["percent"] = res.Milestone
		err = s.notifier.NotifyChild(ctx, child, model.NotifMilestoneReached, "Milestone reached",
			fmt.Sprintf("%s is %d%% of the way to %s.", child.Name, res.Milestone, g.Name), data)
	}
	if err != nil {
		s.logger.Error("goal notification", "goal_id", g.ID, "error", err)
	}

	if res.Challenge != nil && res.Challenge.Status == model.ChallengeCompleted {
		body := fmt.Sprintf("%s completed the %s challenge", child.Name, g.Name)
		if res.Bonus != nil {
			body += fmt.Sprintf(" and earned a %s bonus", res.Bonus.Amount.StringFixed(2))
		}
		if err := s.notifier.NotifyChild(ctx, child, model.NotifChallengeCompleted, "Challenge completed", body+".", data); err != nil {
			s.logger.Error("challenge notification", "goal_id", g.ID, "error", err)
		}
	}
}

// WithdrawFromGoal moves money from a goal back to the main balance.
// Only parents may withdraw.
func (s *Service) WithdrawFromGoal(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID, amount decimal.Decimal, reason string) (*model.SavingsGoal, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	amount, err := ledger.NormalizeAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.loadGoal(ctx, ac, goalID); err != nil {
		return nil, err
	}

	var g *model.SavingsGoal
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		var err error
		g, err = reload(ctx, goals, goalID)
		if err != nil {
			return err
		}
		if g.Status == model.GoalPurchased || g.Status == model.GoalCancelled {
			return apperr.State("goal is %s", g.Status)
		}
		if amount.GreaterThan(g.CurrentAmount) {
			return fmt.Errorf("%w: goal holds %s, withdrawal %s",
				apperr.ErrInsufficientFunds, g.CurrentAmount.StringFixed(2), amount.StringFixed(2))
		}

		desc := "Withdrawal from " + g.Name
		if reason != "" {
			desc += ": " + reason
		}
		credit, _, err := s.ledger.Post(ctx, tx, ledger.Entry{
			ChildID:     g.ChildID,
			Amount:      amount,
			Type:        model.Credit,
			Category:    model.CategorySavingsWithdrawal,
			Description: desc,
			CreatedBy:   ac.Actor(),
		})
		if err != nil {
			return err
		}

		g.CurrentAmount = g.CurrentAmount.Sub(amount)
		if g.Status == model.GoalCompleted && g.CurrentAmount.LessThan(g.TargetAmount) {
			g.Status = model.GoalActive
			g.CompletedAt = nil
		}
		if err := goals.SaveState(ctx, g); err != nil {
			return err
		}
		return goals.AddTransaction(ctx, &model.GoalTransaction{
			GoalID:              g.ID,
			Amount:              amount,
			Type:                model.GoalWithdrawal,
			Description:         desc,
			LedgerTransactionID: &credit.ID,
			CreatedBy:           ac.Actor(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("goal withdrawal", "goal_id", goalID, "amount", amount.String())
	return g, nil
}

// --- Matching rules and challenges ---

type MatchingParams struct {
	MatchType      model.MatchType
	Value          decimal.Decimal
	MaxMatchAmount decimal.Decimal
	ExpiresAt      *time.Time
}

func (s *Service) SetMatchingRule(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID, p MatchingParams) (*model.MatchingRule, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	g, _, err := s.loadGoal(ctx, ac, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status == model.GoalPurchased || g.Status == model.GoalCancelled {
		return nil, apperr.State("goal is %s", g.Status)
	}
	if p.MatchType != model.MatchRatio && p.MatchType != model.MatchFixed {
		return nil, apperr.Invalid("match_type", "must be Ratio or Fixed")
	}
	if !p.Value.IsPositive() {
		return nil, apperr.Invalid("value", "must be greater than zero")
	}
	if p.MaxMatchAmount.IsNegative() {
		return nil, apperr.Invalid("max_match_amount", "must not be negative")
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(s.now()) {
		return nil, apperr.Invalid("expires_at", "must be in the future")
	}

	r := &model.MatchingRule{
		GoalID:         goalID,
		MatchType:      p.MatchType,
		Value:          p.Value,
		MaxMatchAmount: p.MaxMatchAmount.Round(2),
		ExpiresAt:      p.ExpiresAt,
		CreatedBy:      ac.Actor(),
	}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.goals.WithTx(tx).UpsertMatchingRule(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) RemoveMatchingRule(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID) error {
	if err := ac.RequireParent(); err != nil {
		return err
	}
	if _, _, err := s.loadGoal(ctx, ac, goalID); err != nil {
		return err
	}
	removed, err := s.goals.DeleteMatchingRule(ctx, goalID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.ErrNotFound
	}
	return nil
}

type ChallengeParams struct {
	TargetAmount decimal.Decimal
	EndDate      time.Time
	BonusAmount  decimal.Decimal
}

func (s *Service) CreateChallenge(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID, p ChallengeParams) (*model.GoalChallenge, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	g, _, err := s.loadGoal(ctx, ac, goalID)
	if err != nil {
		return nil, err
	}
	target, err := ledger.NormalizeAmount("target_amount", p.TargetAmount)
	if err != nil {
		return nil, err
	}
	if target.GreaterThan(g.TargetAmount) {
		return nil, apperr.Invalid("target_amount", "must not exceed the goal target of %s", g.TargetAmount.StringFixed(2))
	}
	bonus, err := ledger.NormalizeAmount("bonus_amount", p.BonusAmount)
	if err != nil {
		return nil, err
	}
	if !p.EndDate.After(s.now()) {
		return nil, apperr.Invalid("end_date", "must be in the future")
	}

	c := &model.GoalChallenge{
		GoalID:       goalID,
		TargetAmount: target,
		EndDate:      p.EndDate.UTC(),
		BonusAmount:  bonus,
		CreatedBy:    ac.Actor(),
	}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		goals := s.goals.WithTx(tx)
		g, err := reload(ctx, goals, goalID)
		if err != nil {
			return err
		}
		if g.Status != model.GoalActive {
			return apperr.State("goal is %s", g.Status)
		}
		if !target.GreaterThan(g.CurrentAmount) {
			return apperr.Invalid("target_amount", "must exceed the current amount of %s", g.CurrentAmount.StringFixed(2))
		}
		existing, err := goals.GetActiveChallenge(ctx, goalID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.State("goal already has an active challenge")
		}
		return goals.CreateChallenge(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CancelChallenge(ctx context.Context, ac auth.AuthContext, goalID uuid.UUID) error {
	if err := ac.RequireParent(); err != nil {
		return err
	}
	if _, _, err := s.loadGoal(ctx, ac, goalID); err != nil {
		return err
	}
	c, err := s.goals.GetActiveChallenge(ctx, goalID)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	return s.goals.SetChallengeStatus(ctx, c.ID, model.ChallengeCancelled, nil)
}
