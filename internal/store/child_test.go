package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestChildCreateDefaults(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)

	c := fx.child
	if c.Name != "Sam" {
		t.Errorf("name = %q, want %q", c.Name, "Sam")
	}
	if !c.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", c.Balance)
	}
	if !c.WeeklyAllowance.Equal(dec("10")) {
		t.Errorf("weekly allowance = %s, want 10", c.WeeklyAllowance)
	}
	if c.AllowanceDay != time.Saturday {
		t.Errorf("allowance day = %v, want Saturday", c.AllowanceDay)
	}
	if c.LastAllowanceAt != nil {
		t.Errorf("last allowance = %v, want nil", c.LastAllowanceAt)
	}
}

func TestChildGetNotFound(t *testing.T) {
	db := setupTestDB(t)

	c, err := NewChildStore(db).GetByID(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil, got %v", c)
	}
}

func TestChildUpdateBalanceGuarded(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)
	cs := NewChildStore(db)
	ctx := context.Background()

	if err := cs.UpdateBalance(ctx, fx.child.ID, dec("0"), dec("12.5")); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	err := cs.UpdateBalance(ctx, fx.child.ID, dec("0"), dec("20"))
	if !errors.Is(err, ErrStaleBalance) {
		t.Fatalf("err = %v, want ErrStaleBalance", err)
	}

	c, err := cs.GetByID(ctx, fx.child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if !c.Balance.Equal(dec("12.5")) {
		t.Errorf("balance = %s, want 12.5", c.Balance)
	}
}

func TestChildAllowanceCandidates(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)
	cs := NewChildStore(db)
	ctx := context.Background()

	got, err := cs.ListAllowanceCandidates(ctx)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}

	if err := cs.SetAllowancePaused(ctx, fx.child.ID, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	got, err = cs.ListAllowanceCandidates(ctx)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates = %d, want 0 after pause", len(got))
	}
}
