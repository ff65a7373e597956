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

type GoalStore struct {
	q DBTX
}

func NewGoalStore(q DBTX) *GoalStore {
	return &GoalStore{q: q}
}

func (s *GoalStore) WithTx(tx *sql.Tx) *GoalStore {
	return &GoalStore{q: tx}
}

// --- Goal methods ---

func scanGoal(scanner interface{ Scan(...any) error }) (*model.SavingsGoal, error) {
	var g model.SavingsGoal
	var completedAt sql.NullTime
	err := scanner.Scan(
		&g.ID, &g.ChildID, &g.Name, &g.Description, &g.TargetAmount,
		&g.CurrentAmount, &g.Surplus, &g.Status, &g.ImageURL,
		&completedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.CompletedAt = timePtr(completedAt)
	return &g, nil
}

const goalCols = `id, child_id, name, description, target_amount, current_amount, surplus, status, image_url, completed_at, created_at, updated_at`

func (s *GoalStore) Create(ctx context.Context, childID uuid.UUID, name, description string, target decimal.Decimal, imageURL string) (*model.SavingsGoal, error) {
	ts := now()
	g := &model.SavingsGoal{
		ID:            uuid.New(),
		ChildID:       childID,
		Name:          name,
		Description:   description,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Surplus:       decimal.Zero,
		Status:        model.GoalActive,
		ImageURL:      imageURL,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO savings_goals (`+goalCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ChildID, g.Name, g.Description, g.TargetAmount,
		g.CurrentAmount, g.Surplus, g.Status, g.ImageURL,
		sql.NullTime{}, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) GetByID(ctx context.Context, id uuid.UUID) (*model.SavingsGoal, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+goalCols+` FROM savings_goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) ListByChild(ctx context.Context, childID uuid.UUID) ([]model.SavingsGoal, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+goalCols+` FROM savings_goals WHERE child_id = ? ORDER BY created_at ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) UpdateDetails(ctx context.Context, id uuid.UUID, name, description string, target decimal.Decimal, imageURL string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE savings_goals SET name = ?, description = ?, target_amount = ?, image_url = ?, updated_at = ? WHERE id = ?`,
		name, description, target, imageURL, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

// SaveState writes the mutable money and status fields of a goal.
func (s *GoalStore) SaveState(ctx context.Context, g *model.SavingsGoal) error {
	g.UpdatedAt = now()
	_, err := s.q.ExecContext(ctx,
		`UPDATE savings_goals SET current_amount = ?, surplus = ?, status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		g.CurrentAmount, g.Surplus, g.Status, nullTime(g.CompletedAt), g.UpdatedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("save goal state: %w", err)
	}
	return nil
}

// --- Goal transaction methods ---

func scanGoalTransaction(scanner interface{ Scan(...any) error }) (*model.GoalTransaction, error) {
	var t model.GoalTransaction
	var ledgerID, createdBy uuid.NullUUID
	err := scanner.Scan(&t.ID, &t.GoalID, &t.Amount, &t.Type, &t.Description, &ledgerID, &createdBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.LedgerTransactionID = uuidPtr(ledgerID)
	t.CreatedBy = uuidPtr(createdBy)
	return &t, nil
}

const goalTransactionCols = `id, goal_id, amount, type, description, ledger_transaction_id, created_by, created_at`

func (s *GoalStore) AddTransaction(ctx context.Context, t *model.GoalTransaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO goal_transactions (`+goalTransactionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.GoalID, t.Amount, t.Type, t.Description,
		nullUUID(t.LedgerTransactionID), nullUUID(t.CreatedBy), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert goal transaction: %w", err)
	}
	return nil
}

func (s *GoalStore) ListTransactions(ctx context.Context, goalID uuid.UUID) ([]model.GoalTransaction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+goalTransactionCols+` FROM goal_transactions WHERE goal_id = ? ORDER BY created_at ASC, rowid ASC`,
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goal transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.GoalTransaction
	for rows.Next() {
		t, err := scanGoalTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// --- Matching rule methods ---

func scanMatchingRule(scanner interface{ Scan(...any) error }) (*model.MatchingRule, error) {
	var r model.MatchingRule
	var expiresAt sql.NullTime
	var createdBy uuid.NullUUID
	err := scanner.Scan(
		&r.ID, &r.GoalID, &r.MatchType, &r.Value, &r.MaxMatchAmount,
		&r.TotalMatched, &expiresAt, &r.Active, &createdBy, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ExpiresAt = timePtr(expiresAt)
	r.CreatedBy = uuidPtr(createdBy)
	return &r, nil
}

const matchingRuleCols = `id, goal_id, match_type, value, max_match_amount, total_matched, expires_at, active, created_by, created_at`

// UpsertMatchingRule replaces the goal's rule. TotalMatched restarts at zero.
func (s *GoalStore) UpsertMatchingRule(ctx context.Context, r *model.MatchingRule) error {
	r.ID = uuid.New()
	r.TotalMatched = decimal.Zero
	r.Active = true
	r.CreatedAt = now()
	if _, err := s.q.ExecContext(ctx, `DELETE FROM matching_rules WHERE goal_id = ?`, r.GoalID); err != nil {
		return fmt.Errorf("delete matching rule: %w", err)
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO matching_rules (`+matchingRuleCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GoalID, r.MatchType, r.Value, r.MaxMatchAmount,
		r.TotalMatched, nullTime(r.ExpiresAt), boolInt(r.Active), nullUUID(r.CreatedBy), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert matching rule: %w", err)
	}
	return nil
}

func (s *GoalStore) GetMatchingRule(ctx context.Context, goalID uuid.UUID) (*model.MatchingRule, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+matchingRuleCols+` FROM matching_rules WHERE goal_id = ?`, goalID)
	r, err := scanMatchingRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get matching rule: %w", err)
	}
	return r, nil
}

func (s *GoalStore) SaveMatchingRule(ctx context.Context, r *model.MatchingRule) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE matching_rules SET total_matched = ?, active = ? WHERE id = ?`,
		r.TotalMatched, boolInt(r.Active), r.ID,
	)
	if err != nil {
		return fmt.Errorf("save matching rule: %w", err)
	}
	return nil
}

func (s *GoalStore) DeleteMatchingRule(ctx context.Context, goalID uuid.UUID) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM matching_rules WHERE goal_id = ?`, goalID)
	if err != nil {
		return false, fmt.Errorf("delete matching rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Challenge methods ---

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.GoalChallenge, error) {
	var c model.GoalChallenge
	var completedAt sql.NullTime
	var createdBy uuid.NullUUID
	err := scanner.Scan(
		&c.ID, &c.GoalID, &c.TargetAmount, &c.EndDate, &c.BonusAmount,
		&c.Status, &completedAt, &createdBy, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CompletedAt = timePtr(completedAt)
	c.CreatedBy = uuidPtr(createdBy)
	c.EndDate = c.EndDate.UTC()
	return &c, nil
}

const challengeCols = `id, goal_id, target_amount, end_date, bonus_amount, status, completed_at, created_by, created_at`

func (s *GoalStore) CreateChallenge(ctx context.Context, c *model.GoalChallenge) error {
	c.ID = uuid.New()
	c.Status = model.ChallengeActive
	c.CreatedAt = now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO goal_challenges (`+challengeCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.GoalID, c.TargetAmount, c.EndDate.UTC(), c.BonusAmount,
		c.Status, nullTime(c.CompletedAt), nullUUID(c.CreatedBy), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// GetActiveChallenge returns the goal's single Active challenge, if any.
func (s *GoalStore) GetActiveChallenge(ctx context.Context, goalID uuid.UUID) (*model.GoalChallenge, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+challengeCols+` FROM goal_challenges WHERE goal_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		goalID, model.ChallengeActive,
	)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active challenge: %w", err)
	}
	return c, nil
}

func (s *GoalStore) SetChallengeStatus(ctx context.Context, id uuid.UUID, status model.ChallengeStatus, completedAt *time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE goal_challenges SET status = ?, completed_at = ? WHERE id = ?`,
		status, nullTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("set challenge status: %w", err)
	}
	return nil
}

// --- Milestone methods ---

// CreateMilestones seeds the unreached milestone rows for a goal.
func (s *GoalStore) CreateMilestones(ctx context.Context, goalID uuid.UUID, percents []int) error {
	for _, p := range percents {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO goal_milestones (id, goal_id, percent) VALUES (?, ?, ?)`,
			uuid.New(), goalID, p,
		)
		if err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
	}
	return nil
}

func (s *GoalStore) ListMilestones(ctx context.Context, goalID uuid.UUID) ([]model.GoalMilestone, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, goal_id, percent, reached_at FROM goal_milestones WHERE goal_id = ? ORDER BY percent ASC`,
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []model.GoalMilestone
	for rows.Next() {
		var m model.GoalMilestone
		var reachedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.GoalID, &m.Percent, &reachedAt); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		m.ReachedAt = timePtr(reachedAt)
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

func (s *GoalStore) MarkMilestoneReached(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE goal_milestones SET reached_at = ? WHERE id = ? AND reached_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark milestone reached: %w", err)
	}
	return nil
}
