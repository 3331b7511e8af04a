package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"binarymlm/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Operation describes one ledger call. Source and destination are optional but
// at least one must be set; a user without a wallet kind (or the reverse) is invalid.
type Operation struct {
	Type models.TransactionType

	FromUser   *uint
	FromWallet *models.WalletKind
	ToUser     *uint
	ToWallet   *models.WalletKind

	Amount              decimal.Decimal
	DeductionPercentage decimal.Decimal
	// LimitGrant is added to the income limit of the destination user, or of the
	// source user when there is no destination.
	LimitGrant decimal.Decimal

	Description string
	// Reference identifies the logical operation. A completed transaction with
	// the same reference is returned instead of applying the operation again.
	Reference string
	Metadata  map[string]any

	OTPRequired bool
	OTPVerified bool

	// Effects runs inside the atomic unit after balances are written and the
	// transaction row exists.
	Effects func(tx *gorm.DB, txn *models.Transaction) error
}

func (op *Operation) Validate() error {
	if !op.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, op.Type)
	}
	if !op.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !isCents(op.Amount) {
		return fmt.Errorf("%w: amount %s is finer than a cent", ErrValidation, op.Amount)
	}
	if op.DeductionPercentage.IsNegative() || op.DeductionPercentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: deduction percentage must be within 0..100", ErrValidation)
	}
	if op.LimitGrant.IsNegative() {
		return fmt.Errorf("%w: limit grant must not be negative", ErrValidation)
	}
	if !isCents(op.LimitGrant) {
		return fmt.Errorf("%w: limit grant %s is finer than a cent", ErrValidation, op.LimitGrant)
	}
	if (op.FromUser == nil) != (op.FromWallet == nil) {
		return fmt.Errorf("%w: source user and wallet must be set together", ErrValidation)
	}
	if (op.ToUser == nil) != (op.ToWallet == nil) {
		return fmt.Errorf("%w: destination user and wallet must be set together", ErrValidation)
	}
	if op.FromUser == nil && op.ToUser == nil {
		return fmt.Errorf("%w: operation has neither source nor destination", ErrValidation)
	}
	if op.FromWallet != nil && !op.FromWallet.Valid() {
		return fmt.Errorf("%w: unknown source wallet %q", ErrValidation, *op.FromWallet)
	}
	if op.ToWallet != nil && !op.ToWallet.Valid() {
		return fmt.Errorf("%w: unknown destination wallet %q", ErrValidation, *op.ToWallet)
	}
	if op.Type == models.TxPayout && (op.FromWallet == nil || *op.FromWallet != models.WalletIncome) {
		return fmt.Errorf("%w: payout must debit the income wallet", ErrValidation)
	}
	if op.FromUser != nil && op.ToUser != nil && *op.FromUser == *op.ToUser && *op.FromWallet == *op.ToWallet {
		return fmt.Errorf("%w: source and destination are the same wallet", ErrValidation)
	}
	return nil
}

// Split returns the deduction, rounded half-up to cents, and the net amount.
func (op *Operation) Split() (deduction, net decimal.Decimal) {
	deduction = op.Amount.Mul(op.DeductionPercentage).Div(hundred).Round(2)
	return deduction, op.Amount.Sub(deduction).Round(2)
}

// isCents reports whether d fits the two-decimal money columns.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Users lists the distinct users the operation touches.
func (op *Operation) Users() []uint {
	var ids []uint
	if op.FromUser != nil {
		ids = append(ids, *op.FromUser)
	}
	if op.ToUser != nil && (op.FromUser == nil || *op.ToUser != *op.FromUser) {
		ids = append(ids, *op.ToUser)
	}
	return ids
}

func Ptr(id uint) *uint {
	return &id
}
