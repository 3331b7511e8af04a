package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"binarymlm/internal/ledger"
	"binarymlm/internal/metrics"
	"binarymlm/internal/models"
	"binarymlm/internal/notify"
)

var ErrRunInProgress = errors.New("matching: run already in progress")

type Config struct {
	RewardRate  decimal.Decimal
	MaxReward   decimal.Decimal
	BatchSize   int
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		RewardRate:  decimal.RequireFromString("0.08"),
		MaxReward:   decimal.NewFromInt(500),
		BatchSize:   100,
		Concurrency: 10,
	}
}

type Result struct {
	Evaluated   int
	Processed   int
	Failed      int
	TotalAmount decimal.Decimal
	Errors      []string
}

type Engine struct {
	db         *gorm.DB
	ledger     *ledger.Engine
	serializer *ledger.Serializer
	notifier   notify.Notifier
	metrics    *metrics.Collectors
	cfg        Config
	now        func() time.Time

	running sync.Mutex
}

func NewEngine(db *gorm.DB, l *ledger.Engine, s *ledger.Serializer, n notify.Notifier, m *metrics.Collectors, cfg Config) *Engine {
	if n == nil {
		n = notify.Nop{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Engine{db: db, ledger: l, serializer: s, notifier: n, metrics: m, cfg: cfg, now: time.Now}
}

const eligibleWhere = "(today_left_bv > 0 OR today_right_bv > 0 OR cf_left_bv > 0 OR cf_right_bv > 0) AND (left_bv > 0 OR right_bv > 0)"

// RunDaily settles every eligible member, stores the reward records and credits
// each reward to the member's income wallet. Per-member failures are collected
// in the result; the returned error is reserved for failures of the whole run.
func (e *Engine) RunDaily(ctx context.Context) (*Result, error) {
	if !e.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.running.Unlock()

	started := e.now()
	res := &Result{TotalAmount: decimal.Zero}
	records, err := e.settleAll(ctx, res)
	if err == nil && len(records) > 0 {
		if err = e.db.WithContext(ctx).CreateInBatches(&records, e.cfg.BatchSize).Error; err != nil {
			err = fmt.Errorf("insert matching records: %w", err)
		} else {
			e.creditAll(ctx, records, res)
		}
	}

	e.metrics.ObserveMatchingRun(res.Processed, res.Failed, res.TotalAmount, err)
	if err != nil {
		log.Error().Err(err).Msg("daily matching run failed")
		return res, err
	}

	log.Info().
		Int("evaluated", res.Evaluated).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Str("total", res.TotalAmount.StringFixed(2)).
		Dur("took", e.now().Sub(started)).
		Msg("daily matching run finished")
	e.notifier.Notify(notify.Event{
		Name: notify.EventMatchingCompleted,
		Fields: map[string]string{
			"processed": strconv.Itoa(res.Processed),
			"failed":    strconv.Itoa(res.Failed),
			"total":     res.TotalAmount.StringFixed(2),
		},
	})
	return res, nil
}

func (e *Engine) settleAll(ctx context.Context, res *Result) ([]models.MatchingIncomeRecord, error) {
	var eligible []models.MemberStats
	if err := e.db.WithContext(ctx).Select("id").Where(eligibleWhere).Order("id").Find(&eligible).Error; err != nil {
		return nil, fmt.Errorf("load eligible members: %w", err)
	}
	if len(eligible) == 0 {
		log.Info().Msg("no eligible members for matching income")
		return nil, nil
	}

	var records []models.MatchingIncomeRecord
	for _, s := range eligible {
		settlement, err := e.settle(ctx, s.ID)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("member %d: %v", s.ID, err))
			log.Error().Err(err).Uint("user_id", s.ID).Msg("failed to settle matching bv")
			continue
		}
		res.Evaluated++
		reward := Reward(settlement.Matched, e.cfg.RewardRate, e.cfg.MaxReward)
		if !reward.IsPositive() {
			continue
		}
		records = append(records, models.MatchingIncomeRecord{
			UserID:         s.ID,
			AmountCredited: reward,
			MatchedBV:      settlement.Matched,
			CreatedAt:      e.now().UTC(),
		})
	}
	return records, nil
}

// settle computes the member's matched bv and persists the carry-forward with
// the daily reset in one unit.
func (e *Engine) settle(ctx context.Context, userID uint) (Settlement, error) {
	var out Settlement
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats models.MemberStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&stats, userID).Error; err != nil {
			return err
		}
		var prior int64
		if err := tx.Model(&models.MatchingIncomeRecord{}).Where("user_id = ?", userID).Count(&prior).Error; err != nil {
			return err
		}
		out = Calculate(&stats, prior > 0)
		return tx.Model(&models.MemberStats{}).Where("id = ?", userID).Updates(map[string]any{
			"cf_left_bv":               out.CFLeft,
			"cf_right_bv":              out.CFRight,
			"today_left_bv":            decimal.Zero,
			"today_right_bv":           decimal.Zero,
			"today_left_count":         0,
			"today_right_count":        0,
			"today_left_active_count":  0,
			"today_right_active_count": 0,
		}).Error
	})
	return out, err
}

func (e *Engine) creditAll(ctx context.Context, records []models.MatchingIncomeRecord, res *Result) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(e.cfg.Concurrency)
	for i := range records {
		rec := records[i]
		g.Go(func() error {
			err := e.credit(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("member %d: credit %s: %v", rec.UserID, rec.AmountCredited.StringFixed(2), err))
				return nil
			}
			res.Processed++
			res.TotalAmount = res.TotalAmount.Add(rec.AmountCredited)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) credit(ctx context.Context, rec models.MatchingIncomeRecord) error {
	op := ledger.Operation{
		Type:        models.TxIncomeCredit,
		ToUser:      ledger.Ptr(rec.UserID),
		ToWallet:    models.WalletIncome.Ptr(),
		Amount:      rec.AmountCredited,
		Description: "Matching income",
		Reference:   "matching-income:" + strconv.FormatUint(uint64(rec.ID), 10),
		Metadata: map[string]any{
			"matching_record_id": rec.ID,
			"matched_bv":         rec.MatchedBV.String(),
		},
		Effects: func(tx *gorm.DB, txn *models.Transaction) error {
			return tx.Create(&models.RewardPayout{
				UserID:        rec.UserID,
				ReferenceID:   rec.ID,
				TransactionID: txn.ID,
				Type:          models.RewardMatchingIncome,
				Status:        models.RewardStatusProcessed,
				Amount:        rec.AmountCredited,
			}).Error
		},
	}
	_, err := ledger.Execute(ctx, e.serializer, []uint{rec.UserID}, func(ctx context.Context) (*models.Transaction, error) {
		return e.ledger.Execute(ctx, op)
	})
	return err
}
