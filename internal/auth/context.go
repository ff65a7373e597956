package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/model"
)

type contextKey struct{}

// AuthContext identifies the caller of a request. ChildID is set only for
// child accounts.
type AuthContext struct {
	UserID   uuid.UUID
	FamilyID uuid.UUID
	Role     model.Role
	ChildID  *uuid.UUID
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) uuid.UUID {
	ac, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return ac.FamilyID
}

func UserID(ctx context.Context) uuid.UUID {
	ac, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return ac.UserID
}

func (ac AuthContext) IsParent() bool {
	return ac.Role == model.RoleParent
}

// RequireParent returns apperr.ErrForbidden unless the caller is a parent.
func (ac AuthContext) RequireParent() error {
	if !ac.IsParent() {
		return apperr.ErrForbidden
	}
	return nil
}

// CanAccessChild checks that the child belongs to the caller's family and,
// for child callers, that it is their own record.
func (ac AuthContext) CanAccessChild(c *model.Child) error {
	if c == nil || c.FamilyID != ac.FamilyID {
		return apperr.ErrNotFound
	}
	if ac.IsParent() {
		return nil
	}
	if ac.ChildID == nil || *ac.ChildID != c.ID {
		return apperr.ErrForbidden
	}
	return nil
}

// Actor returns the caller's user id for created_by style columns.
func (ac AuthContext) Actor() *uuid.UUID {
	if ac.UserID == uuid.Nil {
		return nil
	}
	id := ac.UserID
	return &id
}

// ChildGetter loads a child by id, returning nil when it does not exist.
type ChildGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Child, error)
}

// LoadChild fetches a child and applies CanAccessChild.
func (ac AuthContext) LoadChild(ctx context.Context, children ChildGetter, id uuid.UUID) (*model.Child, error) {
	c, err := children.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ac.CanAccessChild(c); err != nil {
		return nil, err
	}
	return c, nil
}
