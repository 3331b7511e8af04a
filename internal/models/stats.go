package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MemberStats holds the downline aggregates of one member. Today fields are
// reset by the matching run; at most one carry-forward side is nonzero.
type MemberStats struct {
	ID uint `gorm:"primaryKey;autoIncrement:false"`

	LeftDirectCount        int64 `gorm:"not null;default:0"`
	RightDirectCount       int64 `gorm:"not null;default:0"`
	LeftActiveDirectCount  int64 `gorm:"not null;default:0"`
	RightActiveDirectCount int64 `gorm:"not null;default:0"`

	LeftCount             int64 `gorm:"not null;default:0"`
	RightCount            int64 `gorm:"not null;default:0"`
	LeftActiveCount       int64 `gorm:"not null;default:0"`
	RightActiveCount      int64 `gorm:"not null;default:0"`
	TodayLeftCount        int64 `gorm:"not null;default:0"`
	TodayRightCount       int64 `gorm:"not null;default:0"`
	TodayLeftActiveCount  int64 `gorm:"not null;default:0"`
	TodayRightActiveCount int64 `gorm:"not null;default:0"`

	LeftBV       decimal.Decimal `gorm:"column:left_bv;type:numeric(20,2);not null;default:0"`
	RightBV      decimal.Decimal `gorm:"column:right_bv;type:numeric(20,2);not null;default:0"`
	TodayLeftBV  decimal.Decimal `gorm:"column:today_left_bv;type:numeric(20,2);not null;default:0"`
	TodayRightBV decimal.Decimal `gorm:"column:today_right_bv;type:numeric(20,2);not null;default:0"`
	CFLeftBV     decimal.Decimal `gorm:"column:cf_left_bv;type:numeric(20,2);not null;default:0"`
	CFRightBV    decimal.Decimal `gorm:"column:cf_right_bv;type:numeric(20,2);not null;default:0"`

	UpdatedAt time.Time
}
