package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dukerupert/allowance/internal/model"
)

func TestNotificationReadFlow(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFamily(t, db)
	ns := NewNotificationStore(db)
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		n := &model.Notification{
			UserID:   fx.parent.ID,
			FamilyID: fx.family.ID,
			Type:     model.NotifTaskSubmitted,
			Title:    title,
			Data:     json.RawMessage(`{"task":"x"}`),
		}
		if err := ns.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	count, err := ns.CountUnread(ctx, fx.parent.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d, want 2", count)
	}

	list, err := ns.ListByUser(ctx, fx.parent.ID, true, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(list[0].Data) != `{"task":"x"}` {
		t.Errorf("data = %s", list[0].Data)
	}

	ok, err := ns.MarkRead(ctx, list[0].ID, fx.parent.ID)
	if err != nil || !ok {
		t.Fatalf("mark read = %v, %v", ok, err)
	}
	n, err := ns.MarkAllRead(ctx, fx.parent.ID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 1 {
		t.Errorf("marked = %d, want 1", n)
	}
	count, err = ns.CountUnread(ctx, fx.parent.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 0 {
		t.Errorf("unread = %d, want 0", count)
	}
}
