// Package family handles accounts: registering a family, logging in, and
// managing the family's children.
package family

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

const MinPasswordLength = 8

type Service struct {
	db       *sql.DB
	families *store.FamilyStore
	users    *store.UserStore
	children *store.ChildStore
	tokens   *auth.Tokens
	logger   *slog.Logger
}

func NewService(db *sql.DB, tokens *auth.Tokens, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		families: store.NewFamilyStore(db),
		users:    store.NewUserStore(db),
		children: store.NewChildStore(db),
		tokens:   tokens,
		logger:   logger.With("component", "family"),
	}
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *model.User  `json:"user"`
	Child     *model.Child `json:"child,omitempty"`
}

func validateCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Invalid("email", "is not a valid address")
	}
	if len(password) < MinPasswordLength {
		return "", apperr.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	return email, nil
}

// createUser inserts a user after checking the email is free. It must run
// inside tx so the check and insert are atomic.
func (s *Service) createUser(ctx context.Context, tx *sql.Tx, familyID uuid.UUID, email, name, password string, role model.Role) (*model.User, error) {
	users := s.users.WithTx(tx)
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email is already registered", apperr.ErrConflict)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return users.Create(ctx, familyID, email, name, role, hash)
}

// Register creates a family and its first parent and logs the parent in.
func (s *Service) Register(ctx context.Context, familyName, parentName, email, password string) (*Session, error) {
	familyName = strings.TrimSpace(familyName)
	parentName = strings.TrimSpace(parentName)
	if familyName == "" {
		return nil, apperr.Invalid("family_name", "is required")
	}
	if parentName == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	email, err := validateCredentials(email, password)
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		f, err := s.families.WithTx(tx).Create(ctx, familyName)
		if err != nil {
			return err
		}
		user, err = s.createUser(ctx, tx, f.ID, email, parentName, password, model.RoleParent)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("family registered", "family_id", user.FamilyID, "user_id", user.ID)
	return s.session(user, nil)
}

// Login checks credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.ErrUnauthorized
	}

	var child *model.Child
	if user.Role == model.RoleChild {
		child, err = s.children.GetByUserID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, apperr.ErrUnauthorized
		}
	}
	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return s.session(user, child)
}

func (s *Service) session(user *model.User, child *model.Child) (*Session, error) {
	ac := auth.AuthContext{UserID: user.ID, FamilyID: user.FamilyID, Role: user.Role}
	if child != nil {
		ac.ChildID = &child.ID
	}
	token, exp, err := s.tokens.Issue(ac)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user, Child: child}, nil
}

type ChildParams struct {
	Name            string
	Email           string
	Password        string
	WeeklyAllowance decimal.Decimal
	AllowanceDay    time.Weekday
	AllowDebt       bool
}

// AddChild creates a child login and its allowance settings.
func (s *Service) AddChild(ctx context.Context, ac auth.AuthContext, p ChildParams) (*model.Child, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	email, err := validateCredentials(p.Email, p.Password)
	if err != nil {
		return nil, err
	}
	weekly := p.WeeklyAllowance.Round(2)
	if weekly.IsNegative() {
		return nil, apperr.Invalid("weekly_allowance", "must not be negative")
	}
	if p.AllowanceDay < time.Sunday || p.AllowanceDay > time.Saturday {
		return nil, apperr.Invalid("allowance_day", "must be 0 (Sunday) to 6 (Saturday)")
	}

	var child *model.Child
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		user, err := s.createUser(ctx, tx, ac.FamilyID, email, p.Name, p.Password, model.RoleChild)
		if err != nil {
			return err
		}
		child, err = s.children.WithTx(tx).Create(ctx, user.ID, ac.FamilyID, store.ChildParams{
			WeeklyAllowance: weekly,
			AllowanceDay:    p.AllowanceDay,
			AllowDebt:       p.AllowDebt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	child.Name = p.Name

	s.logger.Info("child added", "family_id", ac.FamilyID, "child_id", child.ID)
	return child, nil
}

// ListChildren returns the family's children. A child caller sees only
// themselves.
func (s *Service) ListChildren(ctx context.Context, ac auth.AuthContext) ([]model.Child, error) {
	if !ac.IsParent() {
		if ac.ChildID == nil {
			return nil, apperr.ErrForbidden
		}
		c, err := ac.LoadChild(ctx, s.children, *ac.ChildID)
		if err != nil {
			return nil, err
		}
		return []model.Child{*c}, nil
	}
	return s.children.ListByFamily(ctx, ac.FamilyID)
}

func (s *Service) GetChild(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.Child, error) {
	return ac.LoadChild(ctx, s.children, id)
}

// SettingsParams carries optional updates; nil fields are left unchanged.
// The weekly amount is changed through the allowance service so it is
// audited.
type SettingsParams struct {
	AllowDebt    *bool
	AllowanceDay *time.Weekday
}

func (s *Service) UpdateChildSettings(ctx context.Context, ac auth.AuthContext, id uuid.UUID, p SettingsParams) (*model.Child, error) {
	if err := ac.RequireParent(); err != nil {
		return nil, err
	}
	child, err := ac.LoadChild(ctx, s.children, id)
	if err != nil {
		return nil, err
	}
	allowDebt, day := child.AllowDebt, child.AllowanceDay
	if p.AllowDebt != nil {
		allowDebt = *p.AllowDebt
	}
	if p.AllowanceDay != nil {
		day = *p.AllowanceDay
		if day < time.Sunday || day > time.Saturday {
			return nil, apperr.Invalid("allowance_day", "must be 0 (Sunday) to 6 (Saturday)")
		}
	}
	if err := s.children.UpdateSettings(ctx, id, allowDebt, day); err != nil {
		return nil, err
	}
	return s.children.GetByID(ctx, id)
}
