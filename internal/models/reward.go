package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RewardMatchingIncome = "matching-income"

	RewardStatusProcessed = "processed"
)

// RewardPayout links a credited reward to the record that produced it.
type RewardPayout struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        uint            `gorm:"not null;index"`
	ReferenceID   uint            `gorm:"not null;index"`
	TransactionID uint            `gorm:"not null"`
	Type          string          `gorm:"size:32;not null"`
	Status        string          `gorm:"size:16;default:'processed'"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CreatedAt     time.Time
}
