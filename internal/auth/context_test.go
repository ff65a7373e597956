package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:   uuid.New(),
		FamilyID: uuid.New(),
		Role:     model.RoleParent,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != ac.UserID {
		t.Errorf("UserID = %v, want %v", got.UserID, ac.UserID)
	}
	if FamilyID(ctx) != ac.FamilyID {
		t.Errorf("FamilyID = %v, want %v", FamilyID(ctx), ac.FamilyID)
	}
	if !got.IsParent() {
		t.Error("expected parent")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected no AuthContext in empty context")
	}
	if UserID(context.Background()) != uuid.Nil {
		t.Error("expected nil user id")
	}
}

func TestCanAccessChild(t *testing.T) {
	familyID := uuid.New()
	child := &model.Child{ID: uuid.New(), FamilyID: familyID}
	other := &model.Child{ID: uuid.New(), FamilyID: familyID}

	parent := AuthContext{UserID: uuid.New(), FamilyID: familyID, Role: model.RoleParent}
	if err := parent.CanAccessChild(child); err != nil {
		t.Errorf("parent access = %v, want nil", err)
	}

	kid := AuthContext{UserID: uuid.New(), FamilyID: familyID, Role: model.RoleChild, ChildID: &child.ID}
	if err := kid.CanAccessChild(child); err != nil {
		t.Errorf("own access = %v, want nil", err)
	}
	if err := kid.CanAccessChild(other); err != apperr.ErrForbidden {
		t.Errorf("sibling access = %v, want ErrForbidden", err)
	}

	stranger := AuthContext{UserID: uuid.New(), FamilyID: uuid.New(), Role: model.RoleParent}
	if err := stranger.CanAccessChild(child); err != apperr.ErrNotFound {
		t.Errorf("other family access = %v, want ErrNotFound", err)
	}
	if err := kid.RequireParent(); err != apperr.ErrForbidden {
		t.Errorf("RequireParent = %v, want ErrForbidden", err)
	}
}
