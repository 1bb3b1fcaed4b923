// Package ledger moves Cares. Every balance change writes a transaction
// row in the same DB transaction as the balance mutation, so the sum of
// a user's rows always equals the stored balance.
package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/models"
)

var (
	ErrInsufficientCares = errors.New("insufficient cares balance")
	ErrUserNotFound      = errors.New("user not found")
)

// Apply adds amount (signed) to the user's balance and records the
// movement. The balance mutation is a guarded UPDATE: the row only
// changes when the resulting balance stays non-negative, so concurrent
// debits cannot overdraw. Must run inside a gorm transaction.
func Apply(tx *gorm.DB, userID uint, amount int, loanID, helpRequestID *uint) error {
	if amount != 0 {
		res := tx.Model(&models.User{}).
			Where("id = ? AND num_cares + ? >= 0", userID, amount).
			Update("num_cares", gorm.Expr("num_cares + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("ledger: balance update: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("ledger: user lookup: %w", err)
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientCares
		}
	} else {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("ledger: user lookup: %w", err)
		}
		if count == 0 {
			return ErrUserNotFound
		}
	}

	entry := models.Transaction{
		UserID:        userID,
		Amount:        amount,
		LoanID:        loanID,
		HelpRequestID: helpRequestID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("ledger: record entry: %w", err)
	}
	return nil
}

// SumForUser adds up a user's ledger entries; used to audit the
// balance/ledger consistency invariant.
func SumForUser(db *gorm.DB, userID uint) (int, error) {
	var sum *int
	err := db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("SUM(amount)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
