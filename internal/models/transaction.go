package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxTransfer        TransactionType = "transfer"
	TxConvert         TransactionType = "convert"
	TxPayout          TransactionType = "payout"
	TxActivation      TransactionType = "activation"
	TxIncomeCredit    TransactionType = "income-credit"
	TxAdminAdjustment TransactionType = "admin-adjustment"
	TxLimitIncrease   TransactionType = "limit-increase"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxTransfer, TxConvert, TxPayout, TxActivation, TxIncomeCredit, TxAdminAdjustment, TxLimitIncrease:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

type Transaction struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	Type                TransactionType   `gorm:"size:32;not null;index" json:"type"`
	Status              TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	FromUserID          *uint             `gorm:"index" json:"from_user_id,omitempty"`
	ToUserID            *uint             `gorm:"index" json:"to_user_id,omitempty"`
	FromWallet          *WalletKind       `gorm:"size:16" json:"from_wallet,omitempty"`
	ToWallet            *WalletKind       `gorm:"size:16" json:"to_wallet,omitempty"`
	Amount              decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"amount"`
	DeductionAmount     decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"deduction_amount"`
	NetAmount           decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"net_amount"`
	DeductionPercentage decimal.Decimal   `gorm:"type:numeric(9,4);not null;default:0" json:"deduction_percentage"`
	LimitGranted        decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"limit_granted"`
	Description         string            `gorm:"size:512" json:"description"`
	Reference           string            `gorm:"size:64;index" json:"reference"`
	Metadata            string            `gorm:"type:text" json:"metadata,omitempty"`
	FailureReason       string            `gorm:"size:1024" json:"failure_reason,omitempty"`
	OTPRequired         bool              `gorm:"not null" json:"otp_required"`
	OTPVerified         bool              `gorm:"not null" json:"otp_verified"`
	CreatedAt           time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
