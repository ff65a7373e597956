package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID, userID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		familyID: familyID,
		userID:   userID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	fam := uuid.New()

	c1 := mockClient(hub, fam, uuid.New())
	c2 := mockClient(hub, fam, uuid.New())
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(fam); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(fam); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(fam); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, uuid.New(), uuid.New())
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(c.familyID); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToUserScoped(t *testing.T) {
	hub := NewHub(testLogger())
	fam, other := uuid.New(), uuid.New()
	child, sibling := uuid.New(), uuid.New()

	phone := mockClient(hub, fam, child)
	tablet := mockClient(hub, fam, child)
	siblingConn := mockClient(hub, fam, sibling)
	sameUserElsewhere := mockClient(hub, other, child)
	for _, c := range []*Client{phone, tablet, siblingConn, sameUserElsewhere} {
		hub.Register(c)
	}

	id := uuid.New()
	hub.SendToUser(fam, child, NewMessage("notification", "created", &id, map[string]any{"type": "low_balance"}))

	for _, c := range []*Client{phone, tablet} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "notification_created" {
				t.Errorf("expected type notification_created, got %s", got.Type)
			}
			if got.ID == nil || *got.ID != id {
				t.Errorf("expected id %s, got %v", id, got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	for name, c := range map[string]*Client{"sibling": siblingConn, "other family": sameUserElsewhere} {
		if len(c.send) != 0 {
			t.Errorf("%s received a message meant for another user", name)
		}
	}
}

func TestSendToUserNotConnected(t *testing.T) {
	hub := NewHub(testLogger())
	hub.SendToUser(uuid.New(), uuid.New(), NewMessage("transaction", "created", nil, nil))
}

func TestSendToUserFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	fam, user := uuid.New(), uuid.New()

	c := mockClient(hub, fam, user)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.SendToUser(fam, user, NewMessage("test", "fill", nil, nil))
	}
	hub.SendToUser(fam, user, NewMessage("test", "dropped", nil, nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d queued messages, got %d", sendBufferSize, got)
	}
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger())
	fam := uuid.New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := uuid.New()
			c := mockClient(hub, fam, user)
			hub.Register(c)
			hub.SendToUser(fam, user, NewMessage("test", "concurrent", nil, nil))
			for len(c.send) > 0 {
				<-c.send
			}
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(fam); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
