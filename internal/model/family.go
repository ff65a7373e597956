package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleParent Role = "Parent"
	RoleChild  Role = "Child"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type Family struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           uuid.UUID `json:"id"`
	FamilyID     uuid.UUID `json:"family_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Child holds the money-facing settings and stored balance of a child user.
type Child struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	FamilyID        uuid.UUID       `json:"family_id"`
	Name            string          `json:"name"`
	WeeklyAllowance decimal.Decimal `json:"weekly_allowance"`
	Balance         decimal.Decimal `json:"balance"`
	AllowancePaused bool            `json:"allowance_paused"`
	AllowDebt       bool            `json:"allow_debt"`
	AllowanceDay    time.Weekday    `json:"allowance_day"`
	LastAllowanceAt *time.Time      `json:"last_allowance_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
