package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WishListItem struct {
	ID        uuid.UUID       `json:"id"`
	ChildID   uuid.UUID       `json:"child_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	URL       string          `json:"url"`
	Notes     string          `json:"notes"`
	Purchased bool            `json:"purchased"`
	GoalID    *uuid.UUID      `json:"goal_id"`
	CreatedAt time.Time       `json:"created_at"`
}
