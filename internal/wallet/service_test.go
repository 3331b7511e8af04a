package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"binarymlm/internal/cache"
	"binarymlm/internal/ledger"
	"binarymlm/internal/models"
	"binarymlm/internal/otp"
	"binarymlm/internal/testutil"
	"binarymlm/internal/tree"
)

type harness struct {
	db    *gorm.DB
	svc   *Service
	tree  *tree.Engine
	otp   *otp.Service
	cache *cache.Memory
	root  *models.Member
}

func newHarness(t *testing.T) *harness {
	db := testutil.NewDB(t)
	h := &harness{db: db}
	h.cache = cache.NewMemory(time.Minute, nil)
	h.tree = tree.NewEngine(db, nil, nil)
	h.otp = otp.NewService(db, otp.LogMailer{}, 5*time.Minute)
	l := ledger.NewEngine(db, nil, h.cache, nil)
	s := ledger.NewSerializer(3, 0, nil)
	h.svc = NewService(db, l, s, h.cache, h.otp, h.tree, DefaultConfig())

	root, err := h.tree.CreateRoot(context.Background(), "root@example.com", "root")
	require.NoError(t, err)
	h.root = root
	return h
}

func (h *harness) register(t *testing.T, email string, sponsor uint, side models.Side) *models.Member {
	m, err := h.tree.Register(context.Background(), tree.Registration{Email: email, SponsorID: sponsor, Side: side})
	require.NoError(t, err)
	return m
}

func (h *harness) fund(t *testing.T, userID uint, kind models.WalletKind, amount string) {
	_, err := h.svc.AdminExecute(context.Background(), ledger.Operation{
		ToUser:   ledger.Ptr(userID),
		ToWallet: kind.Ptr(),
		Amount:   testutil.Dec(amount),
	})
	require.NoError(t, err)
}

func (h *harness) code(t *testing.T, m *models.Member, typ otp.Type) string {
	rec, err := h.otp.Generate(context.Background(), typ, m.Email, ledger.Ptr(m.ID))
	require.NoError(t, err)
	return rec.Code
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	b := h.register(t, "b@example.com", h.root.ID, models.SideRight)
	h.fund(t, a.ID, models.WalletPoints, "100")
	h.fund(t, b.ID, models.WalletPoints, "100")

	txn, err := h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: b.ID, Amount: testutil.Dec("40")})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, txn.Status)
	testutil.RequireDecimal(t, "40", txn.NetAmount)
	testutil.RequireDecimal(t, "0", txn.DeductionAmount)
	require.True(t, txn.OTPRequired)
	require.False(t, txn.OTPVerified)

	wa, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "60", wa.Points)
	wb, err := h.svc.GetWallet(ctx, b.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "140", wb.Points)

	code := h.code(t, a, otp.TypeFundTransfer)
	txn, err = h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: b.ID, Amount: testutil.Dec("10"), OTP: code})
	require.NoError(t, err)
	require.True(t, txn.OTPVerified)

	_, err = h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: b.ID, Amount: testutil.Dec("10"), OTP: "bad"})
	require.ErrorIs(t, err, otp.ErrInvalid)

	_, err = h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: a.ID, Amount: testutil.Dec("10")})
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: 999, Amount: testutil.Dec("10")})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = h.svc.Transfer(ctx, TransferRequest{FromUser: a.ID, ToUser: b.ID, Amount: testutil.Dec("51")})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	wa, err = h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "50", wa.Points)
}

func TestConvertRequiresCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	testutil.SetWallet(t, h.db, &models.Wallet{ID: a.ID, Income: testutil.Dec("100"), IncomeLimit: testutil.Dec("4900")})

	_, err := h.svc.Convert(ctx, a.ID, testutil.Dec("100"), "")
	require.ErrorIs(t, err, otp.ErrInvalid)

	code := h.code(t, a, otp.TypeConvertIncomeWallet)
	txn, err := h.svc.Convert(ctx, a.ID, testutil.Dec("100"), code)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "10", txn.DeductionAmount)
	testutil.RequireDecimal(t, "90", txn.NetAmount)

	w, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "0", w.Income)
	testutil.RequireDecimal(t, "90", w.Points)

	_, err = h.svc.Convert(ctx, a.ID, testutil.Dec("1"), code)
	require.ErrorIs(t, err, otp.ErrInvalid)
}

func TestPayout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	testutil.SetWallet(t, h.db, &models.Wallet{ID: a.ID, Income: testutil.Dec("500"), IncomeLimit: testutil.Dec("4500")})

	code := h.code(t, a, otp.TypeUSDTWithdrawal)
	txn, err := h.svc.Payout(ctx, a.ID, testutil.Dec("200"), code)
	require.NoError(t, err)
	require.Equal(t, models.TxPayout, txn.Type)
	require.Nil(t, txn.ToUserID)

	w, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "300", w.Income)
	testutil.RequireDecimal(t, "180", w.IncomeWithdrawn)
}

func TestActivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	h.fund(t, h.root.ID, models.WalletPoints, "100")

	txn, err := h.svc.Activate(ctx, ActivationRequest{FromUser: h.root.ID, ToUser: a.ID})
	require.NoError(t, err)
	testutil.RequireDecimal(t, "68", txn.Amount)
	testutil.RequireDecimal(t, "18", txn.DeductionAmount)
	testutil.RequireDecimal(t, "50", txn.NetAmount)
	testutil.RequireDecimal(t, "5000", txn.LimitGranted)

	payer, err := h.svc.GetWallet(ctx, h.root.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "32", payer.Points)
	w, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "50", w.Volume)
	testutil.RequireDecimal(t, "5000", w.IncomeLimit)

	var member models.Member
	require.NoError(t, h.db.First(&member, a.ID).Error)
	require.True(t, member.Active)

	var stats models.MemberStats
	require.NoError(t, h.db.First(&stats, h.root.ID).Error)
	testutil.RequireDecimal(t, "50", stats.LeftBV)
	testutil.RequireDecimal(t, "50", stats.TodayLeftBV)
	require.EqualValues(t, 1, stats.LeftActiveCount)
	require.EqualValues(t, 1, stats.LeftActiveDirectCount)

	var history []models.ActivationHistory
	require.NoError(t, h.db.Find(&history).Error)
	require.Len(t, history, 1)
	require.Equal(t, txn.ID, history[0].TransactionID)

	_, err = h.svc.Activate(ctx, ActivationRequest{FromUser: h.root.ID, ToUser: a.ID})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestActivateHonoursExplicitZeroDeduction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	h.fund(t, h.root.ID, models.WalletPoints, "100")

	amount, pct := testutil.Dec("68"), decimal.Zero
	txn, err := h.svc.Activate(ctx, ActivationRequest{
		FromUser:            h.root.ID,
		ToUser:              a.ID,
		Amount:              &amount,
		DeductionPercentage: &pct,
	})
	require.NoError(t, err)
	testutil.RequireDecimal(t, "0", txn.DeductionPercentage)
	testutil.RequireDecimal(t, "0", txn.DeductionAmount)
	testutil.RequireDecimal(t, "68", txn.NetAmount)

	w, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "68", w.Volume)
	testutil.RequireDecimal(t, "32", testutil.LoadWallet(t, h.db, h.root.ID).Points)

	var stats models.MemberStats
	require.NoError(t, h.db.First(&stats, h.root.ID).Error)
	testutil.RequireDecimal(t, "68", stats.LeftBV)
}

func TestActivateWithoutFundsLeavesMemberInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)

	_, err := h.svc.Activate(ctx, ActivationRequest{FromUser: h.root.ID, ToUser: a.ID})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	var member models.Member
	require.NoError(t, h.db.First(&member, a.ID).Error)
	require.False(t, member.Active)

	var stats models.MemberStats
	require.NoError(t, h.db.First(&stats, h.root.ID).Error)
	require.True(t, stats.LeftBV.IsZero())
}

func TestIncreaseLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, h.root.ID, models.WalletPoints, "70")

	_, err := h.svc.IncreaseLimit(ctx, h.root.ID)
	require.NoError(t, err)

	w, err := h.svc.GetWallet(ctx, h.root.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "2", w.Points)
	testutil.RequireDecimal(t, "50", w.Volume)
	testutil.RequireDecimal(t, "5000", w.IncomeLimit)

	_, err = h.svc.IncreaseLimit(ctx, h.root.ID)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestGetWalletIsNeverStaleAfterWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)

	w, err := h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, w.Points.IsZero())
	require.Equal(t, 1, h.cache.Len())

	h.fund(t, a.ID, models.WalletPoints, "25")

	w, err = h.svc.GetWallet(ctx, a.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "25", w.Points)

	_, err = h.svc.GetWallet(ctx, 999)
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

// Conservation under concurrent opposite transfers. The single-connection test
// store also serializes access; per-user exclusion is covered in the ledger
// serializer tests.
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "a@example.com", h.root.ID, models.SideLeft)
	b := h.register(t, "b@example.com", h.root.ID, models.SideRight)
	h.fund(t, a.ID, models.WalletPoints, "100")
	h.fund(t, b.ID, models.WalletPoints, "100")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = b.ID, a.ID
			}
			_, err := h.svc.Transfer(ctx, TransferRequest{FromUser: from, ToUser: to, Amount: testutil.Dec("15")})
			if err != nil {
				assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			}
		}(i)
	}
	wg.Wait()

	wa := testutil.LoadWallet(t, h.db, a.ID)
	wb := testutil.LoadWallet(t, h.db, b.ID)
	testutil.RequireDecimal(t, "200", wa.Points.Add(wb.Points))
	require.False(t, wa.Points.IsNegative())
	require.False(t, wb.Points.IsNegative())
}
