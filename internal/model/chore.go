package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskActive   TaskStatus = "Active"
	TaskArchived TaskStatus = "Archived"
)

// ChoreTask is a parent-assigned task. An empty Recurrence makes it one-time.
type ChoreTask struct {
	ID          uuid.UUID       `json:"id"`
	FamilyID    uuid.UUID       `json:"family_id"`
	ChildID     uuid.UUID       `json:"child_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
	Recurrence  string          `json:"recurrence"`
	Status      TaskStatus      `json:"status"`
	CreatedBy   *uuid.UUID      `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "PendingApproval"
	CompletionApproved CompletionStatus = "Approved"
	CompletionRejected CompletionStatus = "Rejected"
)

type TaskCompletion struct {
	ID              uuid.UUID        `json:"id"`
	TaskID          uuid.UUID        `json:"task_id"`
	ChildID         uuid.UUID        `json:"child_id"`
	Status          CompletionStatus `json:"status"`
	Notes           string           `json:"notes"`
	PhotoURL        string           `json:"photo_url"`
	RejectionReason string           `json:"rejection_reason"`
	TransactionID   *uuid.UUID       `json:"transaction_id"`
	ReviewedBy      *uuid.UUID       `json:"reviewed_by"`
	ReviewedAt      *time.Time       `json:"reviewed_at"`
	CompletedAt     time.Time        `json:"completed_at"`
}
