package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "Active"
	GoalPaused    GoalStatus = "Paused"
	GoalCompleted GoalStatus = "Completed"
	GoalPurchased GoalStatus = "Purchased"
	GoalCancelled GoalStatus = "Cancelled"
)

type SavingsGoal struct {
	ID            uuid.UUID       `json:"id"`
	ChildID       uuid.UUID       `json:"child_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Surplus       decimal.Decimal `json:"surplus"`
	Status        GoalStatus      `json:"status"`
	ImageURL      string          `json:"image_url"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	MatchingRule *MatchingRule   `json:"matching_rule,omitempty"`
	Challenge    *GoalChallenge  `json:"challenge,omitempty"`
	Milestones   []GoalMilestone `json:"milestones,omitempty"`
}

// Remaining is the amount still needed to reach the target, never negative.
func (g SavingsGoal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ProgressPercent returns progress toward the target as a whole percentage.
func (g SavingsGoal) ProgressPercent() int {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	return int(g.CurrentAmount.Mul(decimal.NewFromInt(100)).Div(g.TargetAmount).IntPart())
}

type GoalTransactionType string

const (
	GoalContribution GoalTransactionType = "Contribution"
	GoalWithdrawal   GoalTransactionType = "Withdrawal"
	GoalMatch        GoalTransactionType = "Match"
	GoalBonus        GoalTransactionType = "Bonus"
	GoalRefund       GoalTransactionType = "Refund"
)

type GoalTransaction struct {
	ID                  uuid.UUID           `json:"id"`
	GoalID              uuid.UUID           `json:"goal_id"`
	Amount              decimal.Decimal     `json:"amount"`
	Type                GoalTransactionType `json:"type"`
	Description         string              `json:"description"`
	LedgerTransactionID *uuid.UUID          `json:"ledger_transaction_id"`
	CreatedBy           *uuid.UUID          `json:"created_by"`
	CreatedAt           time.Time           `json:"created_at"`
}

type MatchType string

const (
	MatchRatio MatchType = "Ratio"
	MatchFixed MatchType = "Fixed"
)

// MatchingRule adds parent money to a goal on each contribution. For Ratio
// rules Value is a multiplier; for Fixed rules it is a flat amount.
// A zero MaxMatchAmount means no cap.
type MatchingRule struct {
	ID             uuid.UUID       `json:"id"`
	GoalID         uuid.UUID       `json:"goal_id"`
	MatchType      MatchType       `json:"match_type"`
	Value          decimal.Decimal `json:"value"`
	MaxMatchAmount decimal.Decimal `json:"max_match_amount"`
	TotalMatched   decimal.Decimal `json:"total_matched"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	Active         bool            `json:"active"`
	CreatedBy      *uuid.UUID      `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "Active"
	ChallengeCompleted ChallengeStatus = "Completed"
	ChallengeFailed    ChallengeStatus = "Failed"
	ChallengeCancelled ChallengeStatus = "Cancelled"
)

type GoalChallenge struct {
	ID           uuid.UUID       `json:"id"`
	GoalID       uuid.UUID       `json:"goal_id"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	EndDate      time.Time       `json:"end_date"`
	BonusAmount  decimal.Decimal `json:"bonus_amount"`
	Status       ChallengeStatus `json:"status"`
	CompletedAt  *time.Time      `json:"completed_at"`
	CreatedBy    *uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

type GoalMilestone struct {
	ID        uuid.UUID  `json:"id"`
	GoalID    uuid.UUID  `json:"goal_id"`
	Percent   int        `json:"percent"`
	ReachedAt *time.Time `json:"reached_at"`
}
