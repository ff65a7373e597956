package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Credit TransactionType = "Credit"
	Debit  TransactionType = "Debit"
)

type Category string

// Credit categories.
const (
	CategoryAllowance         Category = "Allowance"
	CategoryTask              Category = "Task"
	CategoryGift              Category = "Gift"
	CategoryBonusReward       Category = "BonusReward"
	CategorySavingsWithdrawal Category = "SavingsWithdrawal"
	CategoryRefund            Category = "Refund"
	CategoryOtherIncome       Category = "OtherIncome"
)

// Debit categories.
const (
	CategoryToys          Category = "Toys"
	CategoryGames         Category = "Games"
	CategoryBooks         Category = "Books"
	CategoryClothes       Category = "Clothes"
	CategorySnacks        Category = "Snacks"
	CategoryCandy         Category = "Candy"
	CategoryElectronics   Category = "Electronics"
	CategoryEntertainment Category = "Entertainment"
	CategorySports        Category = "Sports"
	CategoryCrafts        Category = "Crafts"
	CategorySavings       Category = "Savings"
	CategoryCharity       Category = "Charity"
	CategoryOtherSpending Category = "OtherSpending"
)

var categoryTypes = map[Category]TransactionType{
	CategoryAllowance:         Credit,
	CategoryTask:              Credit,
	CategoryGift:              Credit,
	CategoryBonusReward:       Credit,
	CategorySavingsWithdrawal: Credit,
	CategoryRefund:            Credit,
	CategoryOtherIncome:       Credit,

	CategoryToys:          Debit,
	CategoryGames:         Debit,
	CategoryBooks:         Debit,
	CategoryClothes:       Debit,
	CategorySnacks:        Debit,
	CategoryCandy:         Debit,
	CategoryElectronics:   Debit,
	CategoryEntertainment: Debit,
	CategorySports:        Debit,
	CategoryCrafts:        Debit,
	CategorySavings:       Debit,
	CategoryCharity:       Debit,
	CategoryOtherSpending: Debit,
}

func (t TransactionType) Valid() bool {
	return t == Credit || t == Debit
}

// ValidFor reports whether the category may be used with the given type.
func (c Category) ValidFor(t TransactionType) bool {
	ct, ok := categoryTypes[c]
	return ok && ct == t
}

// IsSpending reports whether the category is a debit category.
func (c Category) IsSpending() bool {
	return categoryTypes[c] == Debit
}

// Transaction is an append-only ledger row. Amount is always positive;
// Type carries the direction.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	ChildID      uuid.UUID       `json:"child_id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TransactionType `json:"type"`
	Category     Category        `json:"category"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedBy    *uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SignedAmount returns the amount as applied to the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
