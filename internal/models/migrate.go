package models

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&TreeNode{},
		&MemberStats{},
		&Wallet{},
		&Transaction{},
		&MatchingIncomeRecord{},
		&OTP{},
		&ActivationHistory{},
		&RewardPayout{},
	)
}
