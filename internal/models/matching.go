package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchingIncomeRecord marks a credited matching reward. Its existence switches
// the member to carry-forward mode.
type MatchingIncomeRecord struct {
	ID             uint            `gorm:"primaryKey"`
	UserID         uint            `gorm:"not null;index"`
	AmountCredited decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	MatchedBV      decimal.Decimal `gorm:"column:matched_bv;type:numeric(20,2);not null;default:0"`
	CreatedAt      time.Time
}
