// Package testutil provides an in-memory database seeded with a family for
// service and handler tests.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

func DB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Family is a seeded family with one parent and one child.
type Family struct {
	Family     *model.Family
	Parent     *model.User
	ChildUser  *model.User
	Child      *model.Child
	ParentAuth auth.AuthContext
	ChildAuth  auth.AuthContext
}

// SeedFamily creates a family, a parent and a child with a weekly
// allowance of 10 paid on Saturdays.
func SeedFamily(t *testing.T, db *sql.DB) Family {
	t.Helper()
	ctx := context.Background()

	f, err := store.NewFamilyStore(db).Create(ctx, "Test")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	us := store.NewUserStore(db)
	parent, err := us.Create(ctx, f.ID, "parent-"+f.ID.String()+"@example.com", "Pat", model.RoleParent, "x")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	kid, err := us.Create(ctx, f.ID, "kid-"+f.ID.String()+"@example.com", "Sam", model.RoleChild, "x")
	if err != nil {
		t.Fatalf("create child user: %v", err)
	}
	child, err := store.NewChildStore(db).Create(ctx, kid.ID, f.ID, store.ChildParams{
		WeeklyAllowance: decimal.NewFromInt(10),
		AllowanceDay:    time.Saturday,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	return Family{
		Family:     f,
		Parent:     parent,
		ChildUser:  kid,
		Child:      child,
		ParentAuth: auth.AuthContext{UserID: parent.ID, FamilyID: f.ID, Role: model.RoleParent},
		ChildAuth:  auth.AuthContext{UserID: kid.ID, FamilyID: f.ID, Role: model.RoleChild, ChildID: &child.ID},
	}
}

// AddChild adds another child to an existing family.
func AddChild(t *testing.T, db *sql.DB, familyID uuid.UUID, name string) *model.Child {
	t.Helper()
	ctx := context.Background()
	u, err := store.NewUserStore(db).Create(ctx, familyID, uuid.NewString()+"@example.com", name, model.RoleChild, "x")
	if err != nil {
		t.Fatalf("create child user: %v", err)
	}
	c, err := store.NewChildStore(db).Create(ctx, u.ID, familyID, store.ChildParams{AllowanceDay: time.Saturday})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return c
}

// SetBalance overwrites a child's stored balance.
func SetBalance(t *testing.T, db *sql.DB, childID uuid.UUID, balance string) {
	t.Helper()
	cs := store.NewChildStore(db)
	c, err := cs.GetByID(context.Background(), childID)
	if err != nil || c == nil {
		t.Fatalf("get child: %v", err)
	}
	if err := cs.UpdateBalance(context.Background(), childID, c.Balance, decimal.RequireFromString(balance)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

// Balance returns a child's stored balance.
func Balance(t *testing.T, db *sql.DB, childID uuid.UUID) decimal.Decimal {
	t.Helper()
	c, err := store.NewChildStore(db).GetByID(context.Background(), childID)
	if err != nil || c == nil {
		t.Fatalf("get child: %v", err)
	}
	return c.Balance
}

// Sent is one recorded notification.
type Sent struct {
	ChildID uuid.UUID
	Type    model.NotifType
	Title   string
	Body    string
}

// Notifier records notifications instead of delivering them.
type Notifier struct {
	mu   sync.Mutex
	Sent []Sent
}

func (n *Notifier) NotifyChild(_ context.Context, child *model.Child, typ model.NotifType, title, body string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Sent{ChildID: child.ID, Type: typ, Title: title, Body: body})
	return nil
}

func (n *Notifier) NotifyParents(_ context.Context, _ uuid.UUID, typ model.NotifType, title, body string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Sent{Type: typ, Title: title, Body: body})
	return nil
}

// Types returns the recorded notification types in order.
func (n *Notifier) Types() []model.NotifType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]model.NotifType, len(n.Sent))
	for i, s := range n.Sent {
		types[i] = s.Type
	}
	return types
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
