// Package task runs the chore workflow: parents assign tasks, children
// submit completions and parents approve or reject them. Approval posts
// the reward to the child's ledger.
package task

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
	"github.com/dukerupert/allowance/internal/recurrence"
	"github.com/dukerupert/allowance/internal/store"
)

type Notifier interface {
	NotifyChild(ctx context.Context, child *model.Child, typ model.NotifType, title, body string, data any) error
	NotifyParents(ctx context.Context, familyID uuid.UUID, typ model.NotifType, title, body string, data any) error
}

type Service struct {
	db       *sql.DB
	children *store.ChildStore
	tasks    *store.TaskStore
	ledger   *ledger.Service
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, ledger *ledger.Service, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		children: store.NewChildStore(db),
		tasks:    store.NewTaskStore(db),
		ledger:   ledger,
		notifier: notifier,
		logger:   logger.With("component", "task"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Params struct {
	ChildID     uuid.UUID
	Title       string
	Description string
	Reward      decimal.Decimal
	Recurrence  string
}

func (p *Params) validate() error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return apperr.Invalid("title", "is required")
	}
	reward, err := ledger.NormalizeAmount("reward", p.Reward)
	if err != nil {
		return err
	}
	p.Reward = reward
	if p.Recurrence != "" {
		rule, err := recurrence.Parse(p.Recurrence)
		if err != nil {
			return apperr.Invalid("recurrence", "%v", err)
		}
		p.Recurrence = rule.String()
	}
	return nil
}

func (p Params) storeParams() store.TaskParams {
	return store.TaskParams{
		ChildID:     p.ChildID,
		Title:       p.Title,
		Description: p.Description,
		Reward:      p.Reward,
		Recurrence:  p.Recurrence,
	}
}

// loadTask fetches a task visible to the caller. Children only see tasks
// assigned to them.
func (s *Service) loadTask(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.ChoreTask, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.FamilyID != ac.FamilyID {
		return nil, apperr.ErrNotFound
	}
	if !ac.IsParent() && (ac.ChildID == nil || *ac.ChildID != t.ChildID) {
		return nil, apperr.ErrForbidden
	}
	return t, nil
}

func (s *Service) CreateTask(ctx context.Context, ac auth.AuthContext, p Params) (*model.ChoreTask, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	if _, err := ac.LoadChild(ctx, s.children, p.ChildID); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	t, err := s.tasks.Create(ctx, ac.FamilyID, p.storeParams(), ac.Actor())
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", t.ID, "child_id", t.ChildID, "reward", t.Reward.String())
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*TaskWithStatus, error) {
	t, err := s.loadTask(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	return s.withStatus(ctx, *t)
}

// ListTasks lists a family's tasks. Child callers only see their own.
func (s *Service) ListTasks(ctx context.Context, ac auth.AuthContext, childID *uuid.UUID, includeArchived bool) ([]TaskWithStatus, error) {
	if !ac.IsParent() {
		childID = ac.ChildID
		if childID == nil {
			return nil, apperr.ErrForbidden
		}
	}
	tasks, err := s.tasks.List(ctx, ac.FamilyID, childID, includeArchived)
	if err != nil {
		return nil, err
	}
	out := make([]TaskWithStatus, 0, len(tasks))
	for _, t := range tasks {
		ts, err := s.withStatus(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, *ts)
	}
	return out, nil
}

func (s *Service) withStatus(ctx context.Context, t model.ChoreTask) (*TaskWithStatus, error) {
	completions, err := s.tasks.ListCompletions(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	ts, err := ComputeStatus(t, completions, s.now())
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (s *Service) UpdateTask(ctx context.Context, ac auth.AuthContext, id uuid.UUID, p Params) (*model.ChoreTask, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	t, err := s.loadTask(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TaskArchived {
		return nil, apperr.State("task is archived")
	}
	if p.ChildID == uuid.Nil {
		p.ChildID = t.ChildID
	}
	if _, err := ac.LoadChild(ctx, s.children, p.ChildID); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, id, p.storeParams()); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) ArchiveTask(ctx context.Context, ac auth.AuthContext, id uuid.UUID) error {
	if err := ac.RequireParent(); err != nil {
		return err
	}
	if _, err := s.loadTask(ctx, ac, id); err != nil {
		return err
	}
	return s.tasks.SetStatus(ctx, id, model.TaskArchived)
}

// Complete records a submission awaiting parent review.
func (s *Service) Complete(ctx context.Context, ac auth.AuthContext, taskID uuid.UUID, notes, photoURL string) (*model.TaskCompletion, error) {
	t, err := s.loadTask(ctx, ac, taskID)
	if err != nil {
		return nil, err
	}
	child, err := ac.LoadChild(ctx, s.children, t.ChildID)
	if err != nil {
		return nil, err
	}

	c := &model.TaskCompletion{
		TaskID:   t.ID,
		ChildID:  t.ChildID,
		Notes:    strings.TrimSpace(notes),
		PhotoURL: strings.TrimSpace(photoURL),
	}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		current, err := tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.ErrNotFound
		}
		completions, err := tasks.ListCompletions(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.now()
		status, err := ComputeStatus(*current, completions, now)
		if err != nil {
			return err
		}
		if !status.CanComplete {
			return apperr.State("%s", status.Reason)
		}
		c.CompletedAt = now
		return tasks.CreateCompletion(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task submitted", "task_id", t.ID, "completion_id", c.ID, "child_id", t.ChildID)
	if err := s.notifier.NotifyParents(ctx, t.FamilyID, model.NotifTaskSubmitted, "Task submitted",
		fmt.Sprintf("%s finished %q and is waiting for approval.", child.Name, t.Title),
		map[string]any{"task_id": t.ID, "completion_id": c.ID, "child_id": t.ChildID},
	); err != nil {
		s.logger.Error("task submitted notification", "task_id", t.ID, "error", err)
	}
	return c, nil
}

// loadCompletion fetches a completion and its task for a parent of the
// task's family.
func (s *Service) loadCompletion(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.TaskCompletion, *model.ChoreTask, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, nil, err
	}
	c, err := s.tasks.GetCompletion(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, apperr.ErrNotFound
	}
	t, err := s.loadTask(ctx, ac, c.TaskID)
	if err != nil {
		return nil, nil, err
	}
	return c, t, nil
}

// Approve credits the task reward and marks the completion approved in one
// transaction.
func (s *Service) Approve(ctx context.Context, ac auth.AuthContext, completionID uuid.UUID) (*model.TaskCompletion, error) {
	c, t, err := s.loadCompletion(ctx, ac, completionID)
	if err != nil {
		return nil, err
	}

	var child *model.Child
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		current, err := tasks.GetCompletion(ctx, completionID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.ErrNotFound
		}
		if current.Status != model.CompletionPending {
			return apperr.State("completion is %s", current.Status)
		}

		txn, before, err := s.ledger.Post(ctx, tx, ledger.Entry{
			ChildID:     current.ChildID,
			Amount:      t.Reward,
			Type:        model.Credit,
			Category:    model.CategoryTask,
			Description: "Task: " + t.Title,
			CreatedBy:   ac.Actor(),
		})
		if err != nil {
			return err
		}
		child = before

		now := s.now()
		current.Status = model.CompletionApproved
		current.TransactionID = &txn.ID
		current.ReviewedBy = ac.Actor()
		current.ReviewedAt = &now
		ok, err := tasks.Review(ctx, current)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: completion already reviewed", apperr.ErrConflict)
		}
		c = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task approved", "completion_id", c.ID, "reward", t.Reward.String())
	if err := s.notifier.NotifyChild(ctx, child, model.NotifTaskApproved, "Task approved",
		fmt.Sprintf("%q was approved. %s was added to your balance.", t.Title, t.Reward.StringFixed(2)),
		map[string]any{"task_id": t.ID, "completion_id": c.ID},
	); err != nil {
		s.logger.Error("task approved notification", "completion_id", c.ID, "error", err)
	}
	return c, nil
}

// Reject closes a pending completion without changing any balance.
func (s *Service) Reject(ctx context.Context, ac auth.AuthContext, completionID uuid.UUID, reason string) (*model.TaskCompletion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid("reason", "is required")
	}
	c, t, err := s.loadCompletion(ctx, ac, completionID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CompletionPending {
		return nil, apperr.State("completion is %s", c.Status)
	}

	now := s.now()
	c.Status = model.CompletionRejected
	c.RejectionReason = reason
	c.ReviewedBy = ac.Actor()
	c.ReviewedAt = &now
	ok, err := s.tasks.Review(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: completion already reviewed", apperr.ErrConflict)
	}

	s.logger.Info("task rejected", "completion_id", c.ID)
	child, err := s.children.GetByID(ctx, c.ChildID)
	if err == nil && child != nil {
		if err := s.notifier.NotifyChild(ctx, child, model.NotifTaskRejected, "Task not approved",
			fmt.Sprintf("%q was not approved: %s", t.Title, reason),
			map[string]any{"task_id": t.ID, "completion_id": c.ID},
		); err != nil {
			s.logger.Error("task rejected notification", "completion_id", c.ID, "error", err)
		}
	}
	return c, nil
}

func (s *Service) ListCompletions(ctx context.Context, ac auth.AuthContext, taskID uuid.UUID) ([]model.TaskCompletion, error) {
	if _, err := s.loadTask(ctx, ac, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListCompletions(ctx, taskID)
}

// ListPending returns the family's completions awaiting review.
func (s *Service) ListPending(ctx context.Context, ac auth.AuthContext) ([]model.TaskCompletion, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	return s.tasks.ListPending(ctx, ac.FamilyID)
}
