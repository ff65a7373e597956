package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotifType string

const (
	NotifMilestoneReached   NotifType = "milestone_reached"
	NotifGoalCompleted      NotifType = "goal_completed"
	NotifChallengeCompleted NotifType = "challenge_completed"
	NotifTaskSubmitted      NotifType = "task_submitted"
	NotifTaskApproved       NotifType = "task_approved"
	NotifTaskRejected       NotifType = "task_rejected"
	NotifAllowancePaid      NotifType = "allowance_paid"
	NotifLowBalance         NotifType = "low_balance"
)

type Notification struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	FamilyID  uuid.UUID       `json:"family_id"`
	Type      NotifType       `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Data      json.RawMessage `json:"data,omitempty"`
	ReadAt    *time.Time      `json:"read_at"`
	CreatedAt time.Time       `json:"created_at"`
}
