package store

import (
	"context"
	"testing"

	"github.com/dukerupert/allowance/internal/model"
)

func TestUserEmailLowerCased(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)

	if fx.parent.Email != "parent@example.com" {
		t.Errorf("email = %q, want %q", fx.parent.Email, "parent@example.com")
	}

	u, err := NewUserStore(db).GetByEmail(context.Background(), "PARENT@example.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != fx.parent.ID {
		t.Fatalf("get by email = %v, want parent", u)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)

	_, err := NewUserStore(db).Create(context.Background(), fx.family.ID, "parent@example.com", "Other", model.RoleParent, "hash")
	if err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserListParents(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)

	parents, err := NewUserStore(db).ListParents(context.Background(), fx.family.ID)
	if err != nil {
		t.Fatalf("list parents: %v", err)
	}
	if len(parents) != 1 {
		t.Fatalf("parents = %d, want 1", len(parents))
	}
	if parents[0].Role != model.RoleParent {
		t.Errorf("role = %q, want %q", parents[0].Role, model.RoleParent)
	}
}
