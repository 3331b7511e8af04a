package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"binarymlm/internal/models"
)

type Type string

const (
	TypeEmailVerify         Type = "email_verify"
	TypeForgetPassword      Type = "forget_password"
	TypeProfileEdit         Type = "profile_edit"
	TypeFundTransfer        Type = "fund_transfer"
	TypeUSDTWithdrawal      Type = "usdt_withdrawal"
	TypeConvertIncomeWallet Type = "convert_income_wallet"
	TypeAddWalletAddress    Type = "add_wallet_address"
)

var subjects = map[Type]string{
	TypeEmailVerify:         "Verify your email address",
	TypeForgetPassword:      "Reset your password",
	TypeProfileEdit:         "Verify profile changes",
	TypeFundTransfer:        "Verify fund transfer",
	TypeUSDTWithdrawal:      "Verify USDT withdrawal",
	TypeConvertIncomeWallet: "Verify wallet conversion",
	TypeAddWalletAddress:    "Verify new wallet address",
}

func (t Type) Valid() bool {
	_, ok := subjects[t]
	return ok
}

var (
	ErrInvalid        = errors.New("otp: invalid code")
	ErrExpired        = errors.New("otp: code expired")
	ErrUnknownType    = errors.New("otp: unknown type")
	ErrMemberRequired = errors.New("otp: member id required")
)

const (
	MessageVerified = "OTP verified"
	MessageInvalid  = "Invalid OTP"
	MessageExpired  = "OTP has expired"
)

type Result struct {
	OK      bool
	Expired bool
	Message string
}

// Err maps a failed result onto ErrInvalid or ErrExpired.
func (r Result) Err() error {
	switch {
	case r.OK:
		return nil
	case r.Expired:
		return ErrExpired
	default:
		return ErrInvalid
	}
}

type Service struct {
	db     *gorm.DB
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
	code   func() (string, error)
}

func NewService(db *gorm.DB, mailer Mailer, ttl time.Duration) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{db: db, mailer: mailer, ttl: ttl, now: time.Now, code: randomCode}
}

// Generate issues a code for type and email, invalidating any outstanding code
// of the same type for that email, and hands it to the mailer.
func (s *Service) Generate(ctx context.Context, typ Type, email string, memberID *uint) (*models.OTP, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	if typ != TypeEmailVerify && memberID == nil {
		return nil, fmt.Errorf("%w for %s", ErrMemberRequired, typ)
	}
	code, err := s.code()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	record := models.OTP{
		Type:      string(typ),
		Email:     email,
		MemberID:  memberID,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
		Valid:     true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTP{}).
			Where("type = ? AND email = ? AND valid = ?", string(typ), email, true).
			Update("valid", false).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendOTP(ctx, Message{Email: email, Subject: subjects[typ], Code: code, ExpiresAt: record.ExpiresAt}); err != nil {
		return nil, fmt.Errorf("send otp: %w", err)
	}
	return &record, nil
}

// Verify consumes a matching valid code. An expired code is invalidated.
func (s *Service) Verify(ctx context.Context, typ Type, email, code string) (Result, error) {
	var record models.OTP
	res := s.db.WithContext(ctx).
		Where("type = ? AND email = ? AND code = ? AND valid = ?", string(typ), email, code, true).
		Order("id DESC").
		Limit(1).
		Find(&record)
	if res.Error != nil {
		return Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Result{Message: MessageInvalid}, nil
	}

	if s.now().After(record.ExpiresAt) {
		if err := s.db.WithContext(ctx).Model(&models.OTP{}).Where("id = ?", record.ID).Update("valid", false).Error; err != nil {
			return Result{}, err
		}
		return Result{Expired: true, Message: MessageExpired}, nil
	}

	upd := s.db.WithContext(ctx).Model(&models.OTP{}).
		Where("id = ? AND valid = ?", record.ID, true).
		Updates(map[string]any{"verified": true, "valid": false})
	if upd.Error != nil {
		return Result{}, upd.Error
	}
	if upd.RowsAffected == 0 {
		// Consumed by a concurrent verification.
		return Result{Message: MessageInvalid}, nil
	}
	return Result{OK: true, Message: MessageVerified}, nil
}

// SweepExpired invalidates every expired outstanding code.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.OTP{}).
		Where("valid = ? AND expires_at < ?", true, s.now().UTC()).
		Update("valid", false)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("count", res.RowsAffected).Msg("invalidated expired one-time codes")
	}
	return res.RowsAffected, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
