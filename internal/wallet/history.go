package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"binarymlm/internal/ledger"
	"binarymlm/internal/models"
)

const maxPageSize = 100

type HistoryFilter struct {
	Type     models.TransactionType
	Status   models.TransactionStatus
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

type HistoryPage struct {
	Items    []models.Transaction
	Total    int64
	Page     int
	PageSize int
}

// History lists transactions where the member is the source or destination,
// newest first.
func (s *Service) History(ctx context.Context, userID uint, f HistoryFilter) (*HistoryPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("(from_user_id = ? OR to_user_id = ?)", userID, userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}

	q = q.Session(&gorm.Session{})

	page := &HistoryPage{Page: f.Page, PageSize: f.PageSize}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// RetryFailed re-submits a failed transaction under its original reference,
// so retrying an operation that has since completed returns that completion.
func (s *Service) RetryFailed(ctx context.Context, txID uint) (*models.Transaction, error) {
	var failed models.Transaction
	res := s.db.WithContext(ctx).Where("id = ?", txID).Limit(1).Find(&failed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: transaction %d not found", ledger.ErrValidation, txID)
	}
	if failed.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: transaction %d is %s", ledger.ErrValidation, txID, failed.Status)
	}
	if failed.Type == models.TxActivation {
		return nil, fmt.Errorf("%w: activations must be submitted again", ledger.ErrValidation)
	}

	op := ledger.Operation{
		Type:                failed.Type,
		FromUser:            failed.FromUserID,
		FromWallet:          failed.FromWallet,
		ToUser:              failed.ToUserID,
		ToWallet:            failed.ToWallet,
		Amount:              failed.Amount,
		DeductionPercentage: failed.DeductionPercentage,
		LimitGrant:          failed.LimitGranted,
		Description:         failed.Description,
		Reference:           failed.Reference,
		OTPRequired:         failed.OTPRequired,
		OTPVerified:         failed.OTPVerified,
	}
	if failed.Metadata != "" {
		meta := map[string]any{}
		if err := json.Unmarshal([]byte(failed.Metadata), &meta); err == nil {
			meta["retry_of"] = failed.ID
			op.Metadata = meta
			op.Effects = rewardEffects(failed, meta)
		}
	}
	return s.execute(ctx, op)
}

// rewardEffects restores the payout row of a matching credit.
func rewardEffects(failed models.Transaction, meta map[string]any) func(*gorm.DB, *models.Transaction) error {
	recordID, ok := meta["matching_record_id"].(float64)
	if failed.Type != models.TxIncomeCredit || !ok || failed.ToUserID == nil {
		return nil
	}
	return func(tx *gorm.DB, txn *models.Transaction) error {
		return tx.Create(&models.RewardPayout{
			UserID:        *failed.ToUserID,
			ReferenceID:   uint(recordID),
			TransactionID: txn.ID,
			Type:          models.RewardMatchingIncome,
			Status:        models.RewardStatusProcessed,
			Amount:        txn.Amount,
		}).Error
	}
}
