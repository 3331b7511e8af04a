package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivationHistory struct {
	ID            uint            `gorm:"primaryKey"`
	FromUserID    uint            `gorm:"not null;index"`
	ToUserID      uint            `gorm:"not null;index"`
	TransactionID uint            `gorm:"not null;index"`
	Investment    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	BV            decimal.Decimal `gorm:"column:bv;type:numeric(20,2);not null"`
	CreatedAt     time.Time
}
