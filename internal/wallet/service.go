package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"binarymlm/internal/cache"
	"binarymlm/internal/ledger"
	"binarymlm/internal/models"
	"binarymlm/internal/otp"
)

var ErrUserNotFound = errors.New("wallet: user not found")

type OTPVerifier interface {
	Verify(ctx context.Context, typ otp.Type, email, code string) (otp.Result, error)
}

// Activator applies the tree side of an activation inside the ledger's unit.
type Activator interface {
	Activate(ctx context.Context, tx *gorm.DB, memberID uint, bv decimal.Decimal) error
}

type Config struct {
	ConvertDeduction    decimal.Decimal
	PayoutDeduction     decimal.Decimal
	ActivationPrice     decimal.Decimal
	ActivationDeduction decimal.Decimal
	ActivationLimit     decimal.Decimal
	LimitIncreaseCost   decimal.Decimal
	LimitIncreaseGrant  decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		ConvertDeduction:    decimal.NewFromInt(10),
		PayoutDeduction:     decimal.NewFromInt(10),
		ActivationPrice:     decimal.NewFromInt(68),
		ActivationDeduction: decimal.RequireFromString("26.471"),
		ActivationLimit:     decimal.NewFromInt(5000),
		LimitIncreaseCost:   decimal.NewFromInt(68),
		LimitIncreaseGrant:  decimal.NewFromInt(5000),
	}
}

// Service is the entry point for wallet operations. Every mutation goes
// through the serializer and the ledger engine.
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Engine
	serializer *ledger.Serializer
	cache      cache.WalletCache
	otp        OTPVerifier
	activator  Activator
	cfg        Config
}

func NewService(db *gorm.DB, l *ledger.Engine, s *ledger.Serializer, c cache.WalletCache, v OTPVerifier, a Activator, cfg Config) *Service {
	return &Service{db: db, ledger: l, serializer: s, cache: c, otp: v, activator: a, cfg: cfg}
}

type TransferRequest struct {
	FromUser    uint
	ToUser      uint
	Amount      decimal.Decimal
	OTP         string
	Description string
}

// Transfer moves points between members. The code is checked only when given.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	if req.FromUser == req.ToUser {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", ledger.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ledger.ErrValidation)
	}
	from, err := s.member(ctx, req.FromUser)
	if err != nil {
		return nil, err
	}
	to, err := s.member(ctx, req.ToUser)
	if err != nil {
		return nil, err
	}
	if req.OTP != "" {
		if err := s.verify(ctx, otp.TypeFundTransfer, from.Email, req.OTP); err != nil {
			return nil, err
		}
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", to.Email)
	}
	return s.execute(ctx, ledger.Operation{
		Type:        models.TxTransfer,
		FromUser:    ledger.Ptr(from.ID),
		FromWallet:  models.WalletPoints.Ptr(),
		ToUser:      ledger.Ptr(to.ID),
		ToWallet:    models.WalletPoints.Ptr(),
		Amount:      req.Amount,
		Description: description,
		OTPRequired: true,
		OTPVerified: req.OTP != "",
	})
}

// Convert moves income into the member's own points, less the conversion deduction.
func (s *Service) Convert(ctx context.Context, userID uint, amount decimal.Decimal, code string) (*models.Transaction, error) {
	m, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, otp.TypeConvertIncomeWallet, m.Email, code); err != nil {
		return nil, err
	}
	return s.execute(ctx, ledger.Operation{
		Type:                models.TxConvert,
		FromUser:            ledger.Ptr(m.ID),
		FromWallet:          models.WalletIncome.Ptr(),
		ToUser:              ledger.Ptr(m.ID),
		ToWallet:            models.WalletPoints.Ptr(),
		Amount:              amount,
		DeductionPercentage: s.cfg.ConvertDeduction,
		Description:         "Income wallet to points conversion",
		OTPRequired:         true,
		OTPVerified:         true,
	})
}

// Payout withdraws from the income wallet to an external destination.
func (s *Service) Payout(ctx context.Context, userID uint, amount decimal.Decimal, code string) (*models.Transaction, error) {
	m, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, otp.TypeUSDTWithdrawal, m.Email, code); err != nil {
		return nil, err
	}
	return s.execute(ctx, ledger.Operation{
		Type:                models.TxPayout,
		FromUser:            ledger.Ptr(m.ID),
		FromWallet:          models.WalletIncome.Ptr(),
		Amount:              amount,
		DeductionPercentage: s.cfg.PayoutDeduction,
		Description:         "Income wallet withdrawal",
		OTPRequired:         true,
		OTPVerified:         true,
	})
}

type ActivationRequest struct {
	FromUser uint
	ToUser   uint
	// Nil values fall back to the configured price and deduction.
	Amount              *decimal.Decimal
	DeductionPercentage *decimal.Decimal
}

// Activate spends the payer's points to activate a member. The net amount is
// credited as bv to the member's volume wallet and up the tree in the same unit.
func (s *Service) Activate(ctx context.Context, req ActivationRequest) (*models.Transaction, error) {
	amount := s.cfg.ActivationPrice
	if req.Amount != nil {
		amount = *req.Amount
	}
	pct := s.cfg.ActivationDeduction
	if req.DeductionPercentage != nil {
		pct = *req.DeductionPercentage
	}
	payer, err := s.member(ctx, req.FromUser)
	if err != nil {
		return nil, err
	}
	target, err := s.member(ctx, req.ToUser)
	if err != nil {
		return nil, err
	}
	if target.Active {
		return nil, fmt.Errorf("%w: member %d is already active", ledger.ErrValidation, target.ID)
	}

	return s.execute(ctx, ledger.Operation{
		Type:                models.TxActivation,
		FromUser:            ledger.Ptr(payer.ID),
		FromWallet:          models.WalletPoints.Ptr(),
		ToUser:              ledger.Ptr(target.ID),
		ToWallet:            models.WalletVolume.Ptr(),
		Amount:              amount,
		DeductionPercentage: pct,
		LimitGrant:          s.cfg.ActivationLimit,
		Description:         fmt.Sprintf("Activation of %s", target.Email),
		Metadata:            map[string]any{"activated_user_id": target.ID},
		Effects: func(tx *gorm.DB, txn *models.Transaction) error {
			if err := s.activator.Activate(ctx, tx, target.ID, txn.NetAmount); err != nil {
				return err
			}
			return tx.Create(&models.ActivationHistory{
				FromUserID:    payer.ID,
				ToUserID:      target.ID,
				TransactionID: txn.ID,
				Investment:    txn.Amount,
				BV:            txn.NetAmount,
			}).Error
		},
	})
}

// IncreaseLimit buys more income capacity with points; the net is kept as bv.
func (s *Service) IncreaseLimit(ctx context.Context, userID uint) (*models.Transaction, error) {
	m, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, ledger.Operation{
		Type:                models.TxLimitIncrease,
		FromUser:            ledger.Ptr(m.ID),
		FromWallet:          models.WalletPoints.Ptr(),
		ToUser:              ledger.Ptr(m.ID),
		ToWallet:            models.WalletVolume.Ptr(),
		Amount:              s.cfg.LimitIncreaseCost,
		DeductionPercentage: s.cfg.ActivationDeduction,
		LimitGrant:          s.cfg.LimitIncreaseGrant,
		Description:         "Income limit increase",
	})
}

// AdminExecute runs an arbitrary operation without OTP checks.
func (s *Service) AdminExecute(ctx context.Context, op ledger.Operation) (*models.Transaction, error) {
	if op.Type == "" {
		op.Type = models.TxAdminAdjustment
	}
	op.OTPRequired = false
	op.OTPVerified = false
	return s.execute(ctx, op)
}

// GetWallet returns a possibly cached snapshot of the member's wallet.
func (s *Service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	load := func(ctx context.Context) (*models.Wallet, error) {
		var w models.Wallet
		res := s.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&w)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("%w: user %d", ledger.ErrWalletNotFound, userID)
		}
		return &w, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.Fetch(ctx, userID, load)
}

// execute fixes the reference before entering the serializer so retried
// attempts are recognised by the ledger as the same operation.
func (s *Service) execute(ctx context.Context, op ledger.Operation) (*models.Transaction, error) {
	if op.Reference == "" {
		op.Reference = uuid.NewString()
	}
	return ledger.Execute(ctx, s.serializer, op.Users(), func(ctx context.Context) (*models.Transaction, error) {
		return s.ledger.Execute(ctx, op)
	})
}

func (s *Service) member(ctx context.Context, id uint) (*models.Member, error) {
	var m models.Member
	res := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return &m, nil
}

func (s *Service) verify(ctx context.Context, typ otp.Type, email, code string) error {
	if code == "" {
		return fmt.Errorf("%w: code required", otp.ErrInvalid)
	}
	res, err := s.otp.Verify(ctx, typ, email, code)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("%w: %s", err, res.Message)
	}
	return nil
}
