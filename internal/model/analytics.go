package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CategoryTotal struct {
	Category Category        `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summary is a spending and earning overview for one child over a window.
type Summary struct {
	ChildID        uuid.UUID       `json:"child_id"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Balance        decimal.Decimal `json:"balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	Net            decimal.Decimal `json:"net"`
	SavedInGoals   decimal.Decimal `json:"saved_in_goals"`
	ActiveGoals    int             `json:"active_goals"`
	CompletedGoals int             `json:"completed_goals"`
	TasksApproved  int             `json:"tasks_approved"`
	SpendingByCat  []CategoryTotal `json:"spending_by_category"`
	EarningsByCat  []CategoryTotal `json:"earnings_by_category"`
}
