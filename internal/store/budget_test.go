package store

import (
	"context"
	"testing"

	"github.com/dukerupert/allowance/internal/model"
)

func TestBudgetUpsert(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)
	bs := NewBudgetStore(db)
	ctx := context.Background()

	b, err := bs.Upsert(ctx, &model.Budget{ChildID: fx.child.ID, Category: model.CategoryCandy, LimitAmount: dec("5"), Period: model.PeriodWeekly, Enforce: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	b2, err := bs.Upsert(ctx, &model.Budget{ChildID: fx.child.ID, Category: model.CategoryCandy, LimitAmount: dec("8"), Period: model.PeriodMonthly})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if b2.ID != b.ID {
		t.Errorf("id changed on upsert: %v != %v", b2.ID, b.ID)
	}
	if !b2.LimitAmount.Equal(dec("8")) || b2.Period != model.PeriodMonthly || b2.Enforce {
		t.Errorf("budget = %+v", b2)
	}

	list, err := bs.ListByChild(ctx, fx.child.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}

	if err := bs.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := bs.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
