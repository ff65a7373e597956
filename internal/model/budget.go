package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BudgetPeriod string

const (
	PeriodWeekly  BudgetPeriod = "Weekly"
	PeriodMonthly BudgetPeriod = "Monthly"
)

// Budget limits spending in one debit category per period. When Enforce is
// set, debits that would exceed the limit are refused.
type Budget struct {
	ID          uuid.UUID       `json:"id"`
	ChildID     uuid.UUID       `json:"child_id"`
	Category    Category        `json:"category"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Period      BudgetPeriod    `json:"period"`
	Enforce     bool            `json:"enforce"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type BudgetStatus struct {
	Budget      Budget          `json:"budget"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	OverBudget  bool            `json:"over_budget"`
}
