package family

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/testutil"
)

func newService(t *testing.T) (*Service, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens("test-secret", time.Hour)
	return NewService(testutil.DB(t), tokens, testutil.Logger()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Rivera", "Alex", "Alex@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", sess.User.Email)
	assert.Equal(t, model.RoleParent, sess.User.Role)

	ac, err := tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, ac.UserID)
	assert.Equal(t, sess.User.FamilyID, ac.FamilyID)
	assert.True(t, ac.IsParent())

	_, err = svc.Register(ctx, "Other", "Sam", "alex@example.com", "another password")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Login(ctx, "alex@example.com", "wrong password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	login, err := svc.Login(ctx, " ALEX@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name                          string
		family, parent, email, passwd string
	}{
		{"no family", "", "Alex", "a@example.com", "password1"},
		{"no name", "Rivera", "", "a@example.com", "password1"},
		{"bad email", "Rivera", "Alex", "not-an-email", "password1"},
		{"short password", "Rivera", "Alex", "a@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.family, tt.parent, tt.email, tt.passwd)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}

func TestAddChildAndLogin(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Rivera", "Alex", "alex@example.com", "correct horse")
	require.NoError(t, err)
	parent := auth.AuthContext{UserID: sess.User.ID, FamilyID: sess.User.FamilyID, Role: model.RoleParent}

	child, err := svc.AddChild(ctx, parent, ChildParams{
		Name:            "Jo",
		Email:           "jo@example.com",
		Password:        "jo-password",
		WeeklyAllowance: testutil.Dec("7.5"),
		AllowanceDay:    time.Friday,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jo", child.Name)
	assert.True(t, child.WeeklyAllowance.Equal(testutil.Dec("7.50")))
	assert.True(t, child.Balance.IsZero())

	login, err := svc.Login(ctx, "jo@example.com", "jo-password")
	require.NoError(t, err)
	require.NotNil(t, login.Child)
	ac, err := tokens.Parse(login.Token)
	require.NoError(t, err)
	require.NotNil(t, ac.ChildID)
	assert.Equal(t, child.ID, *ac.ChildID)

	_, err = svc.AddChild(ctx, ac, ChildParams{Name: "X", Email: "x@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	kids, err := svc.ListChildren(ctx, ac)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].ID)
}

func TestUpdateChildSettings(t *testing.T) {
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	svc := NewService(db, auth.NewTokens("s", time.Hour), testutil.Logger())
	ctx := context.Background()

	allow := true
	day := time.Monday
	_, err := svc.UpdateChildSettings(ctx, fam.ChildAuth, fam.Child.ID, SettingsParams{AllowDebt: &allow})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	c, err := svc.UpdateChildSettings(ctx, fam.ParentAuth, fam.Child.ID, SettingsParams{AllowDebt: &allow, AllowanceDay: &day})
	require.NoError(t, err)
	assert.True(t, c.AllowDebt)
	assert.Equal(t, time.Monday, c.AllowanceDay)

	bad := time.Weekday(9)
	_, err = svc.UpdateChildSettings(ctx, fam.ParentAuth, fam.Child.ID, SettingsParams{AllowanceDay: &bad})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	other := testutil.SeedFamily(t, db)
	_, err = svc.GetChild(ctx, other.ParentAuth, fam.Child.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
