package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"binarymlm/internal/ledger"
	"binarymlm/internal/models"
	"binarymlm/internal/testutil"
)

func newEngine(t *testing.T) (*Engine, *gorm.DB) {
	db := testutil.NewDB(t)
	l := ledger.NewEngine(db, nil, nil, nil)
	s := ledger.NewSerializer(3, 0, nil)
	return NewEngine(db, l, s, nil, nil, DefaultConfig()), db
}

func seed(t *testing.T, db *gorm.DB, limit string, stats models.MemberStats) uint {
	m := testutil.SeedMember(t, db, "", true)
	testutil.SetWallet(t, db, &models.Wallet{ID: m.ID, IncomeLimit: testutil.Dec(limit)})
	stats.ID = m.ID
	require.NoError(t, db.Save(&stats).Error)
	return m.ID
}

func loadStats(t *testing.T, db *gorm.DB, id uint) models.MemberStats {
	var s models.MemberStats
	require.NoError(t, db.First(&s, id).Error)
	return s
}

func TestRunDailyCreditsAndCarries(t *testing.T) {
	e, db := newEngine(t)
	ctx := context.Background()
	id := seed(t, db, "5000", models.MemberStats{
		LeftBV:          testutil.Dec("200"),
		RightBV:         testutil.Dec("80"),
		TodayLeftBV:     testutil.Dec("200"),
		TodayRightBV:    testutil.Dec("80"),
		TodayLeftCount:  4,
		TodayRightCount: 2,
	})
	idle := seed(t, db, "5000", models.MemberStats{LeftBV: testutil.Dec("10")})

	res, err := e.RunDaily(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Evaluated)
	require.Equal(t, 1, res.Processed)
	require.Zero(t, res.Failed)
	testutil.RequireDecimal(t, "6.4", res.TotalAmount)

	s := loadStats(t, db, id)
	testutil.RequireDecimal(t, "120", s.CFLeftBV)
	testutil.RequireDecimal(t, "0", s.CFRightBV)
	testutil.RequireDecimal(t, "0", s.TodayLeftBV)
	testutil.RequireDecimal(t, "0", s.TodayRightBV)
	require.Zero(t, s.TodayLeftCount)
	require.Zero(t, s.TodayRightCount)
	testutil.RequireDecimal(t, "200", s.LeftBV)

	w := testutil.LoadWallet(t, db, id)
	testutil.RequireDecimal(t, "6.4", w.Income)
	testutil.RequireDecimal(t, "4993.6", w.IncomeLimit)

	var records []models.MatchingIncomeRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	testutil.RequireDecimal(t, "80", records[0].MatchedBV)

	var payouts []models.RewardPayout
	require.NoError(t, db.Find(&payouts).Error)
	require.Len(t, payouts, 1)
	require.Equal(t, records[0].ID, payouts[0].ReferenceID)
	require.Equal(t, models.RewardMatchingIncome, payouts[0].Type)

	var txn models.Transaction
	require.NoError(t, db.First(&txn, payouts[0].TransactionID).Error)
	require.Equal(t, models.TxIncomeCredit, txn.Type)
	require.Equal(t, models.StatusCompleted, txn.Status)

	testutil.RequireDecimal(t, "0", testutil.LoadWallet(t, db, idle).Income)
}

func TestRunDailySwitchesToCarryForward(t *testing.T) {
	e, db := newEngine(t)
	ctx := context.Background()
	id := seed(t, db, "5000", models.MemberStats{
		LeftBV:       testutil.Dec("200"),
		RightBV:      testutil.Dec("80"),
		TodayLeftBV:  testutil.Dec("200"),
		TodayRightBV: testutil.Dec("80"),
	})
	_, err := e.RunDaily(ctx)
	require.NoError(t, err)

	// Only carry on the left: nothing to match.
	res, err := e.RunDaily(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Evaluated)
	require.Zero(t, res.Processed)
	testutil.RequireDecimal(t, "120", loadStats(t, db, id).CFLeftBV)

	require.NoError(t, db.Model(&models.MemberStats{}).Where("id = ?", id).Updates(map[string]any{
		"right_bv":       testutil.Dec("130"),
		"today_right_bv": testutil.Dec("50"),
	}).Error)

	res, err = e.RunDaily(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	testutil.RequireDecimal(t, "4", res.TotalAmount)
	s := loadStats(t, db, id)
	testutil.RequireDecimal(t, "70", s.CFLeftBV)
	testutil.RequireDecimal(t, "0", s.CFRightBV)
	testutil.RequireDecimal(t, "10.4", testutil.LoadWallet(t, db, id).Income)
}

func TestRunDailyCollectsCreditFailures(t *testing.T) {
	e, db := newEngine(t)
	capped := seed(t, db, "0", models.MemberStats{
		LeftBV:       testutil.Dec("100"),
		RightBV:      testutil.Dec("100"),
		TodayLeftBV:  testutil.Dec("100"),
		TodayRightBV: testutil.Dec("100"),
	})
	ok := seed(t, db, "5000", models.MemberStats{
		LeftBV:       testutil.Dec("50"),
		RightBV:      testutil.Dec("50"),
		TodayRightBV: testutil.Dec("50"),
	})

	res, err := e.RunDaily(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Evaluated)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "limit exceeded")
	testutil.RequireDecimal(t, "4", res.TotalAmount)

	testutil.RequireDecimal(t, "0", testutil.LoadWallet(t, db, capped).Income)
	testutil.RequireDecimal(t, "4", testutil.LoadWallet(t, db, ok).Income)

	var failed int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("status = ?", models.StatusFailed).Count(&failed).Error)
	require.EqualValues(t, 1, failed)
}

func TestRunDailyRejectsOverlap(t *testing.T) {
	e, _ := newEngine(t)
	e.running.Lock()
	defer e.running.Unlock()

	_, err := e.RunDaily(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunDailyWithNothingEligible(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.RunDaily(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Evaluated)
	require.True(t, res.TotalAmount.IsZero())
}
