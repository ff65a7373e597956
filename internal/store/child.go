package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

// ErrStaleBalance is returned by UpdateBalance when the stored balance no
// longer matches the balance the caller read.
var ErrStaleBalance = errors.New("stale balance")

type ChildStore struct {
	q DBTX
}

func NewChildStore(q DBTX) *ChildStore {
	return &ChildStore{q: q}
}

func (s *ChildStore) WithTx(tx *sql.Tx) *ChildStore {
	return &ChildStore{q: tx}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var lastAllowance sql.NullTime
	err := scanner.Scan(
		&c.ID, &c.UserID, &c.FamilyID, &c.Name,
		&c.WeeklyAllowance, &c.Balance, &c.AllowancePaused, &c.AllowDebt,
		&c.AllowanceDay, &lastAllowance, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.LastAllowanceAt = timePtr(lastAllowance)
	return &c, nil
}

const childSelect = `SELECT c.id, c.user_id, c.family_id, u.name,
	c.weekly_allowance, c.balance, c.allowance_paused, c.allow_debt,
	c.allowance_day, c.last_allowance_at, c.created_at, c.updated_at
	FROM children c JOIN users u ON u.id = c.user_id`

type ChildParams struct {
	WeeklyAllowance decimal.Decimal
	AllowanceDay    time.Weekday
	AllowDebt       bool
}

func (s *ChildStore) Create(ctx context.Context, userID, familyID uuid.UUID, p ChildParams) (*model.Child, error) {
	id := uuid.New()
	ts := now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO children (id, user_id, family_id, weekly_allowance, balance, allowance_paused, allow_debt, allowance_day, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id, userID, familyID, p.WeeklyAllowance, decimal.Zero, boolInt(p.AllowDebt), int(p.AllowanceDay), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChildStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Child, error) {
	row := s.q.QueryRowContext(ctx, childSelect+` WHERE c.id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (s *ChildStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Child, error) {
	row := s.q.QueryRowContext(ctx, childSelect+` WHERE c.user_id = ?`, userID)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child by user: %w", err)
	}
	return c, nil
}

func (s *ChildStore) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]model.Child, error) {
	return s.list(ctx, childSelect+` WHERE c.family_id = ? ORDER BY u.name ASC`, familyID)
}

// ListAllowanceCandidates returns every child with an unpaused, non-zero allowance.
func (s *ChildStore) ListAllowanceCandidates(ctx context.Context) ([]model.Child, error) {
	return s.list(ctx, childSelect+` WHERE c.allowance_paused = 0 AND c.weekly_allowance != '0' ORDER BY c.created_at ASC`)
}

func (s *ChildStore) list(ctx context.Context, query string, args ...any) ([]model.Child, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

// UpdateBalance swaps the stored balance from old to updated. It returns
// ErrStaleBalance when another writer changed the balance first.
func (s *ChildStore) UpdateBalance(ctx context.Context, id uuid.UUID, old, updated decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE children SET balance = ?, updated_at = ? WHERE id = ? AND balance = ?`,
		updated, now(), id, old,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleBalance
	}
	return nil
}

func (s *ChildStore) UpdateSettings(ctx context.Context, id uuid.UUID, allowDebt bool, allowanceDay time.Weekday) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE children SET allow_debt = ?, allowance_day = ?, updated_at = ? WHERE id = ?`,
		boolInt(allowDebt), int(allowanceDay), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update child settings: %w", err)
	}
	return nil
}

func (s *ChildStore) SetAllowancePaused(ctx context.Context, id uuid.UUID, paused bool) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE children SET allowance_paused = ?, updated_at = ? WHERE id = ?`,
		boolInt(paused), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set allowance paused: %w", err)
	}
	return nil
}

func (s *ChildStore) SetWeeklyAllowance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE children SET weekly_allowance = ?, updated_at = ? WHERE id = ?`,
		amount, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set weekly allowance: %w", err)
	}
	return nil
}

func (s *ChildStore) SetLastAllowanceAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE children SET last_allowance_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set last allowance: %w", err)
	}
	return nil
}
