// Package notify persists user notifications and fans them out to
// connected websocket clients and the event broker.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/events"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Sender pushes a message to one user's live connections.
type Sender interface {
	SendToUser(familyID, userID uuid.UUID, msg websocket.Message)
}

type Service struct {
	db        *sql.DB
	users     *store.UserStore
	notifs    *store.NotificationStore
	hub       Sender
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(db *sql.DB, hub Sender, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		db:        db,
		users:     store.NewUserStore(db),
		notifs:    store.NewNotificationStore(db),
		hub:       hub,
		publisher: publisher,
		logger:    logger.With("component", "notify"),
	}
}

// Notify stores one notification per recipient, pushes each row to its
// recipient's connections only, and publishes one event. Delivery failures after the rows are stored are logged,
// not returned.
func (s *Service) Notify(ctx context.Context, familyID uuid.UUID, recipients []uuid.UUID, typ model.NotifType, title, body string, data any) ([]model.Notification, error) {
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return nil, nil
	}

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal notification data: %w", err)
		}
		raw = b
	}

	created := make([]model.Notification, 0, len(recipients))
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		notifs := s.notifs.WithTx(tx)
		for _, userID := range recipients {
			n := model.Notification{
				UserID:   userID,
				FamilyID: familyID,
				Type:     typ,
				Title:    title,
				Body:     body,
				Data:     raw,
			}
			if err := notifs.Create(ctx, &n); err != nil {
				return err
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		for _, n := range created {
			id := n.ID
			s.hub.SendToUser(familyID, n.UserID, websocket.NewMessage("notification", "created", &id, map[string]any{
				"type":  n.Type,
				"title": n.Title,
				"body":  n.Body,
			}))
		}
	}

	if err := s.publisher.Publish(ctx, events.Event{
		ID:         uuid.New(),
		Type:       string(typ),
		FamilyID:   familyID,
		Recipients: recipients,
		Title:      title,
		Body:       body,
		Data:       raw,
		Timestamp:  created[0].CreatedAt,
	}); err != nil {
		s.logger.Error("publish notification event", "type", typ, "family_id", familyID, "error", err)
	}

	s.logger.Debug("notification sent", "type", typ, "family_id", familyID, "recipients", len(recipients))
	return created, nil
}

// NotifyChild notifies a child and every parent in their family.
func (s *Service) NotifyChild(ctx context.Context, child *model.Child, typ model.NotifType, title, body string, data any) error {
	parents, err := s.users.ListParents(ctx, child.FamilyID)
	if err != nil {
		return err
	}
	recipients := []uuid.UUID{child.UserID}
	for _, p := range parents {
		recipients = append(recipients, p.ID)
	}
	_, err = s.Notify(ctx, child.FamilyID, recipients, typ, title, body, data)
	return err
}

// NotifyParents notifies every parent in a family.
func (s *Service) NotifyParents(ctx context.Context, familyID uuid.UUID, typ model.NotifType, title, body string, data any) error {
	parents, err := s.users.ListParents(ctx, familyID)
	if err != nil {
		return err
	}
	recipients := make([]uuid.UUID, 0, len(parents))
	for _, p := range parents {
		recipients = append(recipients, p.ID)
	}
	_, err = s.Notify(ctx, familyID, recipients, typ, title, body, data)
	return err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, ac auth.AuthContext, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.notifs.ListByUser(ctx, ac.UserID, unreadOnly, limit)
}

func (s *Service) UnreadCount(ctx context.Context, ac auth.AuthContext) (int, error) {
	return s.notifs.CountUnread(ctx, ac.UserID)
}

// MarkRead marks one of the caller's notifications read. Marking an
// already read notification succeeds.
func (s *Service) MarkRead(ctx context.Context, ac auth.AuthContext, id uuid.UUID) error {
	n, err := s.notifs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil || n.UserID != ac.UserID {
		return apperr.ErrNotFound
	}
	if _, err := s.notifs.MarkRead(ctx, id, ac.UserID); err != nil {
		return err
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller read and
// returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, ac auth.AuthContext) (int64, error) {
	return s.notifs.MarkAllRead(ctx, ac.UserID)
}
