package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type AdjustmentStore struct {
	q DBTX
}

func NewAdjustmentStore(q DBTX) *AdjustmentStore {
	return &AdjustmentStore{q: q}
}

func (s *AdjustmentStore) WithTx(tx *sql.Tx) *AdjustmentStore {
	return &AdjustmentStore{q: tx}
}

func scanAdjustment(scanner interface{ Scan(...any) error }) (*model.AllowanceAdjustment, error) {
	var a model.AllowanceAdjustment
	var oldAmount, newAmount decimal.NullDecimal
	var actorID uuid.NullUUID
	err := scanner.Scan(&a.ID, &a.ChildID, &a.Type, &oldAmount, &newAmount, &a.Reason, &actorID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if oldAmount.Valid {
		a.OldAmount = &oldAmount.Decimal
	}
	if newAmount.Valid {
		a.NewAmount = &newAmount.Decimal
	}
	a.ActorID = uuidPtr(actorID)
	return &a, nil
}

const adjustmentCols = `id, child_id, type, old_amount, new_amount, reason, actor_id, created_at`

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (s *AdjustmentStore) Create(ctx context.Context, a *model.AllowanceAdjustment) error {
	a.ID = uuid.New()
	a.CreatedAt = now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO allowance_adjustments (`+adjustmentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ChildID, a.Type, nullDecimal(a.OldAmount), nullDecimal(a.NewAmount),
		a.Reason, nullUUID(a.ActorID), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// ListByChild returns a child's audit trail, newest first.
func (s *AdjustmentStore) ListByChild(ctx context.Context, childID uuid.UUID) ([]model.AllowanceAdjustment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+adjustmentCols+` FROM allowance_adjustments WHERE child_id = ? ORDER BY created_at DESC, rowid DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []model.AllowanceAdjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		adjustments = append(adjustments, *a)
	}
	return adjustments, rows.Err()
}
