package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	family *model.Family
	parent *model.User
	child  *model.Child
}

func seedFamily(t *testing.T, db *sql.DB) fixture {
	t.Helper()
	ctx := context.Background()

	f, err := NewFamilyStore(db).Create(ctx, "Smith")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	us := NewUserStore(db)
	parent, err := us.Create(ctx, f.ID, "Parent@Example.com", "Pat", model.RoleParent, "hash")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	kid, err := us.Create(ctx, f.ID, "kid@example.com", "Sam", model.RoleChild, "hash")
	if err != nil {
		t.Fatalf("create child user: %v", err)
	}
	child, err := NewChildStore(db).Create(ctx, kid.ID, f.ID, ChildParams{
		WeeklyAllowance: decimal.NewFromInt(10),
		AllowanceDay:    time.Saturday,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return fixture{family: f, parent: parent, child: child}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
