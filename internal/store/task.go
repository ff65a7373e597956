package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type TaskStore struct {
	q DBTX
}

func NewTaskStore(q DBTX) *TaskStore {
	return &TaskStore{q: q}
}

func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{q: tx}
}

// --- Task methods ---

func scanTask(scanner interface{ Scan(...any) error }) (*model.ChoreTask, error) {
	var t model.ChoreTask
	var createdBy uuid.NullUUID
	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.ChildID, &t.Title, &t.Description,
		&t.Reward, &t.Recurrence, &t.Status, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedBy = uuidPtr(createdBy)
	return &t, nil
}

const taskCols = `id, family_id, child_id, title, description, reward, recurrence, status, created_by, created_at, updated_at`

type TaskParams struct {
	ChildID     uuid.UUID
	Title       string
	Description string
	Reward      decimal.Decimal
	Recurrence  string
}

func (s *TaskStore) Create(ctx context.Context, familyID uuid.UUID, p TaskParams, createdBy *uuid.UUID) (*model.ChoreTask, error) {
	ts := now()
	t := &model.ChoreTask{
		ID:          uuid.New(),
		FamilyID:    familyID,
		ChildID:     p.ChildID,
		Title:       p.Title,
		Description: p.Description,
		Reward:      p.Reward,
		Recurrence:  p.Recurrence,
		Status:      model.TaskActive,
		CreatedBy:   createdBy,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FamilyID, t.ChildID, t.Title, t.Description,
		t.Reward, t.Recurrence, t.Status, nullUUID(t.CreatedBy), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ChoreTask, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns a family's tasks, optionally narrowed to one child.
// Archived tasks are included only when includeArchived is set.
func (s *TaskStore) List(ctx context.Context, familyID uuid.UUID, childID *uuid.UUID, includeArchived bool) ([]model.ChoreTask, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE family_id = ?`
	args := []any{familyID}
	if childID != nil {
		query += ` AND child_id = ?`
		args = append(args, *childID)
	}
	if !includeArchived {
		query += ` AND status = ?`
		args = append(args, model.TaskActive)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.ChoreTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, p TaskParams) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE tasks SET child_id = ?, title = ?, description = ?, reward = ?, recurrence = ?, updated_at = ? WHERE id = ?`,
		p.ChildID, p.Title, p.Description, p.Reward, p.Recurrence, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *TaskStore) SetStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// --- Completion methods ---

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	var txnID, reviewedBy uuid.NullUUID
	var reviewedAt sql.NullTime
	err := scanner.Scan(
		&c.ID, &c.TaskID, &c.ChildID, &c.Status, &c.Notes, &c.PhotoURL,
		&c.RejectionReason, &txnID, &reviewedBy, &reviewedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TransactionID = uuidPtr(txnID)
	c.ReviewedBy = uuidPtr(reviewedBy)
	c.ReviewedAt = timePtr(reviewedAt)
	return &c, nil
}

const completionCols = `id, task_id, child_id, status, notes, photo_url, rejection_reason, transaction_id, reviewed_by, reviewed_at, completed_at`

func (s *TaskStore) CreateCompletion(ctx context.Context, c *model.TaskCompletion) error {
	c.ID = uuid.New()
	c.Status = model.CompletionPending
	if c.CompletedAt.IsZero() {
		c.CompletedAt = now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO task_completions (`+completionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.ChildID, c.Status, c.Notes, c.PhotoURL,
		c.RejectionReason, nullUUID(c.TransactionID), nullUUID(c.ReviewedBy), nullTime(c.ReviewedAt), c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (s *TaskStore) GetCompletion(ctx context.Context, id uuid.UUID) (*model.TaskCompletion, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+completionCols+` FROM task_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ListCompletions returns a task's completions, newest first.
func (s *TaskStore) ListCompletions(ctx context.Context, taskID uuid.UUID) ([]model.TaskCompletion, error) {
	return s.listCompletions(ctx,
		`SELECT `+completionCols+` FROM task_completions WHERE task_id = ? ORDER BY completed_at DESC, rowid DESC`,
		taskID,
	)
}

// ListPending returns completions awaiting review across a family, oldest first.
func (s *TaskStore) ListPending(ctx context.Context, familyID uuid.UUID) ([]model.TaskCompletion, error) {
	return s.listCompletions(ctx,
		`SELECT `+prefixCols("tc", completionCols)+` FROM task_completions tc
		 JOIN tasks t ON t.id = tc.task_id
		 WHERE t.family_id = ? AND tc.status = ?
		 ORDER BY tc.completed_at ASC, tc.rowid ASC`,
		familyID, model.CompletionPending,
	)
}

// CountApprovedSince counts a child's approved completions since a time.
func (s *TaskStore) CountApprovedSince(ctx context.Context, childID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_completions WHERE child_id = ? AND status = ? AND reviewed_at >= ?`,
		childID, model.CompletionApproved, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved completions: %w", err)
	}
	return n, nil
}

func (s *TaskStore) listCompletions(ctx context.Context, query string, args ...any) ([]model.TaskCompletion, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// Review moves a pending completion to Approved or Rejected. It reports
// false when the completion was no longer pending.
func (s *TaskStore) Review(ctx context.Context, c *model.TaskCompletion) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE task_completions SET status = ?, rejection_reason = ?, transaction_id = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = ?`,
		c.Status, c.RejectionReason, nullUUID(c.TransactionID), nullUUID(c.ReviewedBy), nullTime(c.ReviewedAt),
		c.ID, model.CompletionPending,
	)
	if err != nil {
		return false, fmt.Errorf("review completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
