package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/events"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/testutil"
	"github.com/dukerupert/allowance/internal/websocket"
)

type recorder struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]websocket.Message
	events   []events.Event
	failPub  bool
}

func (r *recorder) SendToUser(_, userID uuid.UUID, msg websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = make(map[uuid.UUID][]websocket.Message)
	}
	r.messages[userID] = append(r.messages[userID], msg)
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPub {
		return errors.New("broker down")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func TestNotifyChildReachesChildAndParents(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	rec := &recorder{}
	svc := NewService(db, rec, rec, testutil.Logger())
	ctx := context.Background()

	err := svc.NotifyChild(ctx, fam.Child, model.NotifGoalCompleted, "Goal reached", "You saved enough!", map[string]any{"goal": "Bike"})
	require.NoError(t, err)

	require.Len(t, rec.messages, 2)
	assert.Len(t, rec.messages[fam.ChildUser.ID], 1)
	assert.Len(t, rec.messages[fam.Parent.ID], 1)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "notification.goal_completed", rec.events[0].RoutingKey())
	assert.ElementsMatch(t, []uuid.UUID{fam.ChildUser.ID, fam.Parent.ID}, rec.events[0].Recipients)

	for _, ac := range []struct {
		name string
		id   uuid.UUID
	}{{"child", fam.ChildAuth.UserID}, {"parent", fam.ParentAuth.UserID}} {
		t.Run(ac.name, func(t *testing.T) {
			n, err := svc.notifs.CountUnread(ctx, ac.id)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}

	list, err := svc.List(ctx, fam.ChildAuth, true, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"goal":"Bike"}`, string(list[0].Data))
}

func TestNotifyParentsOnly(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	svc := NewService(db, nil, nil, testutil.Logger())
	ctx := context.Background()

	require.NoError(t, svc.NotifyParents(ctx, fam.Family.ID, model.NotifTaskSubmitted, "Task submitted", "", nil))

	n, err := svc.UnreadCount(ctx, fam.ParentAuth)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.UnreadCount(ctx, fam.ChildAuth)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishFailureDoesNotFailNotify(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	rec := &recorder{failPub: true}
	svc := NewService(db, rec, rec, testutil.Logger())

	created, err := svc.Notify(context.Background(), fam.Family.ID,
		[]uuid.UUID{fam.Parent.ID, fam.Parent.ID, uuid.Nil}, model.NotifLowBalance, "Low balance", "", nil)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestMarkRead(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	svc := NewService(db, nil, nil, testutil.Logger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.NotifyParents(ctx, fam.Family.ID, model.NotifTaskSubmitted, "Task submitted", "", nil))
	}
	list, err := svc.List(ctx, fam.ParentAuth, false, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.ErrorIs(t, svc.MarkRead(ctx, fam.ChildAuth, list[0].ID), apperr.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, fam.ParentAuth, list[0].ID))
	require.NoError(t, svc.MarkRead(ctx, fam.ParentAuth, list[0].ID))

	n, err := svc.UnreadCount(ctx, fam.ParentAuth)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	changed, err := svc.MarkAllRead(ctx, fam.ParentAuth)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	unread, err := svc.List(ctx, fam.ParentAuth, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestChildNotificationSkipsSiblings(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	sibling := testutil.AddChild(t, db, fam.Family.ID, "Jo")
	rec := &recorder{}
	svc := NewService(db, rec, nil, testutil.Logger())

	err := svc.NotifyChild(context.Background(), fam.Child, model.NotifLowBalance, "Low balance", "", nil)
	require.NoError(t, err)

	assert.Empty(t, rec.messages[sibling.UserID])
	assert.Len(t, rec.messages[fam.ChildUser.ID], 1)
	assert.Len(t, rec.messages[fam.Parent.ID], 1)
}
