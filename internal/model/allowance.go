package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustmentPaused        AdjustmentType = "Paused"
	AdjustmentResumed       AdjustmentType = "Resumed"
	AdjustmentAmountChanged AdjustmentType = "AmountChanged"
)

type AllowanceAdjustment struct {
	ID        uuid.UUID        `json:"id"`
	ChildID   uuid.UUID        `json:"child_id"`
	Type      AdjustmentType   `json:"type"`
	OldAmount *decimal.Decimal `json:"old_amount"`
	NewAmount *decimal.Decimal `json:"new_amount"`
	Reason    string           `json:"reason"`
	ActorID   *uuid.UUID       `json:"actor_id"`
	CreatedAt time.Time        `json:"created_at"`
}
