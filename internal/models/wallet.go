package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type WalletKind string

const (
	WalletPoints WalletKind = "points"
	WalletVolume WalletKind = "volume"
	WalletIncome WalletKind = "income"
)

func (k WalletKind) Valid() bool {
	switch k {
	case WalletPoints, WalletVolume, WalletIncome:
		return true
	}
	return false
}

func (k WalletKind) Ptr() *WalletKind {
	return &k
}

// Wallet is keyed by member id. IncomeLimit is the remaining income capacity.
type Wallet struct {
	ID              uint            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Points          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"points"`
	Volume          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"volume"`
	Income          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"income"`
	IncomeLimit     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"income_limit"`
	IncomeWithdrawn decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"income_withdrawn"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (w *Wallet) Balance(kind WalletKind) (decimal.Decimal, error) {
	switch kind {
	case WalletPoints:
		return w.Points, nil
	case WalletVolume:
		return w.Volume, nil
	case WalletIncome:
		return w.Income, nil
	}
	return decimal.Zero, fmt.Errorf("unknown wallet kind %q", kind)
}

func (w *Wallet) SetBalance(kind WalletKind, v decimal.Decimal) error {
	switch kind {
	case WalletPoints:
		w.Points = v
	case WalletVolume:
		w.Volume = v
	case WalletIncome:
		w.Income = v
	default:
		return fmt.Errorf("unknown wallet kind %q", kind)
	}
	return nil
}

// Columns returns the balance columns for a full-row update, zero values included.
func (w *Wallet) Columns() map[string]any {
	return map[string]any{
		"points":           w.Points,
		"volume":           w.Volume,
		"income":           w.Income,
		"income_limit":     w.IncomeLimit,
		"income_withdrawn": w.IncomeWithdrawn,
	}
}
