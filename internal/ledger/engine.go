package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"binarymlm/internal/metrics"
	"binarymlm/internal/models"
	"binarymlm/internal/notify"
)

// Invalidator drops cached wallet snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint)
}

// Engine is the only writer of wallet balances. Every call runs as one atomic
// unit and leaves exactly one transaction row, completed or failed.
type Engine struct {
	db       *gorm.DB
	notifier notify.Notifier
	cache    Invalidator
	metrics  *metrics.Collectors
}

func NewEngine(db *gorm.DB, notifier notify.Notifier, cache Invalidator, m *metrics.Collectors) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{db: db, notifier: notifier, cache: cache, metrics: m}
}

// Execute applies op. A missing Reference is generated, so callers that retry
// must assign one up front.
func (e *Engine) Execute(ctx context.Context, op Operation) (*models.Transaction, error) {
	defer e.invalidate(ctx, op.Users())

	if op.Reference == "" {
		op.Reference = uuid.NewString()
	}
	if err := op.Validate(); err != nil {
		e.fail(ctx, &op, err)
		return nil, err
	}

	var (
		txn      models.Transaction
		replayed bool
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		replayed, err = e.apply(tx, &op, &txn)
		return err
	})
	if err != nil {
		e.fail(ctx, &op, err)
		return nil, err
	}
	if replayed {
		log.Debug().Str("reference", op.Reference).Uint("transaction_id", txn.ID).Msg("ledger operation already applied")
		return &txn, nil
	}

	e.metrics.ObserveLedger(string(op.Type), string(models.StatusCompleted))
	e.notifier.Notify(notify.Event{
		Name:          notify.EventTransactionCompleted,
		UserID:        primaryUser(&op),
		TransactionID: txn.ID,
		Fields: map[string]string{
			"type":      string(txn.Type),
			"amount":    txn.Amount.StringFixed(2),
			"net":       txn.NetAmount.StringFixed(2),
			"reference": txn.Reference,
		},
	})
	return &txn, nil
}

func (e *Engine) apply(tx *gorm.DB, op *Operation, txn *models.Transaction) (bool, error) {
	found := tx.Where("reference = ? AND status = ?", op.Reference, models.StatusCompleted).Limit(1).Find(txn)
	if found.Error != nil {
		return false, found.Error
	}
	if found.RowsAffected > 0 {
		return true, nil
	}

	wallets, err := lockWallets(tx, op.Users())
	if err != nil {
		return false, err
	}

	deduction, net := op.Split()

	if op.LimitGrant.IsPositive() {
		target := op.FromUser
		if op.ToUser != nil {
			target = op.ToUser
		}
		w := wallets[*target]
		w.IncomeLimit = w.IncomeLimit.Add(op.LimitGrant)
	}

	if op.FromUser != nil {
		w := wallets[*op.FromUser]
		balance, err := w.Balance(*op.FromWallet)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if balance.LessThan(op.Amount) {
			return false, fmt.Errorf("%w: %s wallet of user %d holds %s, needs %s",
				ErrInsufficientBalance, *op.FromWallet, *op.FromUser, balance.StringFixed(2), op.Amount.StringFixed(2))
		}
		if err := w.SetBalance(*op.FromWallet, balance.Sub(op.Amount)); err != nil {
			return false, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if op.Type == models.TxPayout {
			w.IncomeWithdrawn = w.IncomeWithdrawn.Add(net)
		}
	}

	if op.ToUser != nil && op.Type != models.TxPayout {
		w := wallets[*op.ToUser]
		if *op.ToWallet == models.WalletIncome {
			if w.Income.Add(net).GreaterThan(w.IncomeLimit) {
				return false, fmt.Errorf("%w: user %d income %s + %s exceeds limit %s",
					ErrWalletLimitExceeded, *op.ToUser, w.Income.StringFixed(2), net.StringFixed(2), w.IncomeLimit.StringFixed(2))
			}
			w.Income = w.Income.Add(net)
			w.IncomeLimit = w.IncomeLimit.Sub(net)
		} else {
			balance, err := w.Balance(*op.ToWallet)
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if err := w.SetBalance(*op.ToWallet, balance.Add(net)); err != nil {
				return false, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
	}

	for _, id := range op.Users() {
		if err := tx.Model(&models.Wallet{}).Where("id = ?", id).Updates(wallets[id].Columns()).Error; err != nil {
			return false, err
		}
	}

	*txn = newTransaction(op, models.StatusCompleted)
	txn.DeductionAmount = deduction
	txn.NetAmount = net
	if err := tx.Create(txn).Error; err != nil {
		return false, err
	}

	if op.Effects != nil {
		if err := op.Effects(tx, txn); err != nil {
			return false, err
		}
	}
	return false, nil
}

// lockWallets reads the wallets FOR UPDATE in ascending id order.
func lockWallets(tx *gorm.DB, ids []uint) (map[uint]*models.Wallet, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var rows []models.Wallet
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	wallets := make(map[uint]*models.Wallet, len(rows))
	for i := range rows {
		wallets[rows[i].ID] = &rows[i]
	}
	for _, id := range sorted {
		if _, ok := wallets[id]; !ok {
			return nil, fmt.Errorf("%w: user %d", ErrWalletNotFound, id)
		}
	}
	return wallets, nil
}

// fail records the failed attempt outside the rolled-back unit.
func (e *Engine) fail(ctx context.Context, op *Operation, cause error) {
	e.metrics.ObserveLedger(string(op.Type), string(models.StatusFailed))

	txn := newTransaction(op, models.StatusFailed)
	txn.FailureReason = truncate(cause.Error(), 1024)
	if err := e.db.WithContext(context.WithoutCancel(ctx)).Create(&txn).Error; err != nil {
		log.Error().Err(err).AnErr("cause", cause).Str("reference", op.Reference).Msg("failed to record failed transaction")
	}

	lvl := zerolog.ErrorLevel
	if isExpected(cause) {
		lvl = zerolog.WarnLevel
	}
	log.WithLevel(lvl).Err(cause).
		Str("type", string(op.Type)).
		Str("reference", op.Reference).
		Str("amount", op.Amount.String()).
		Msg("ledger operation failed")

	e.notifier.Notify(notify.Event{
		Name:          notify.EventTransactionFailed,
		UserID:        primaryUser(op),
		TransactionID: txn.ID,
		Fields: map[string]string{
			"type":   string(op.Type),
			"amount": op.Amount.String(),
			"reason": txn.FailureReason,
		},
	})
}

func (e *Engine) invalidate(ctx context.Context, ids []uint) {
	if e.cache == nil || len(ids) == 0 {
		return
	}
	e.cache.Invalidate(ctx, ids...)
}

func newTransaction(op *Operation, status models.TransactionStatus) models.Transaction {
	return models.Transaction{
		Type:                op.Type,
		Status:              status,
		FromUserID:          op.FromUser,
		ToUserID:            op.ToUser,
		FromWallet:          op.FromWallet,
		ToWallet:            op.ToWallet,
		Amount:              op.Amount,
		DeductionAmount:     decimal.Zero,
		NetAmount:           decimal.Zero,
		DeductionPercentage: op.DeductionPercentage,
		LimitGranted:        op.LimitGrant,
		Description:         op.Description,
		Reference:           op.Reference,
		Metadata:            encodeMetadata(op.Metadata),
		OTPRequired:         op.OTPRequired,
		OTPVerified:         op.OTPVerified,
	}
}

func encodeMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(raw)
}

func primaryUser(op *Operation) uint {
	if op.FromUser != nil {
		return *op.FromUser
	}
	if op.ToUser != nil {
		return *op.ToUser
	}
	return 0
}

func isExpected(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrWalletLimitExceeded) ||
		errors.Is(err, ErrWalletNotFound)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
