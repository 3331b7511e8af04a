package models

import (
	"time"
)

type OTP struct {
	ID        uint      `gorm:"primaryKey"`
	Type      string    `gorm:"size:64;not null;index:idx_otp_lookup"`
	Email     string    `gorm:"size:255;not null;index:idx_otp_lookup"`
	MemberID  *uint     `gorm:"index"`
	Code      string    `gorm:"size:16;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Valid     bool      `gorm:"not null"`
	Verified  bool      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
