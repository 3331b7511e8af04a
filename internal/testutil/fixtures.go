package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"binarymlm/internal/models"
)

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func RequireDecimal(t testing.TB, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(Dec(want)), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// SeedMember inserts a member with an empty wallet and stats row. No tree node
// is created.
func SeedMember(t testing.TB, db *gorm.DB, email string, active bool) *models.Member {
	t.Helper()
	m := &models.Member{Email: email, Name: email, Side: models.SideLeft, Active: active, Role: models.RoleMember}
	require.NoError(t, db.Create(m).Error)
	require.NoError(t, db.Create(&models.Wallet{ID: m.ID}).Error)
	require.NoError(t, db.Create(&models.MemberStats{ID: m.ID}).Error)
	return m
}

func SetWallet(t testing.TB, db *gorm.DB, w *models.Wallet) {
	t.Helper()
	require.NoError(t, db.Model(&models.Wallet{}).Where("id = ?", w.ID).Updates(w.Columns()).Error)
}

func LoadWallet(t testing.TB, db *gorm.DB, id uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	require.NoError(t, db.First(&w, id).Error)
	return &w
}
