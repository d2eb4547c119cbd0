package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// maxBalanceRetries bounds the optimistic lock retry loop on balance writes.
const maxBalanceRetries = 3

type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", domain.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepo) FindCash(ctx context.Context, ownerID int64, currency string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ? AND kind = ?", ownerID, currency, domain.KindCash).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cash %s for owner %d", domain.ErrAccountNotFound, currency, ownerID)
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// AdjustBalance applies a signed delta under an optimistic version check:
//
//	UPDATE accounts SET balance = ?, version = version + 1 WHERE id = ? AND version = ?
//
// The new balance is computed in memory because credit card balances clamp to
// zero rather than going negative. A zero-row update means another writer got
// in between; the read-compute-write sequence is retried.
func (r *AccountRepo) AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		account, err := r.lockRead(ctx, tx, id)
		if err != nil {
			return decimal.Zero, err
		}

		next := account.Balance.Add(delta)
		if account.Kind == domain.KindCreditCard && next.IsNegative() {
			next = decimal.Zero
		}

		ok, err := r.versionedWrite(ctx, tx, id, account.Version, next)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return next, nil
		}
	}
	return decimal.Zero, domain.ErrConcurrentUpdate
}

// Debit subtracts amount, checking sufficiency and writing inside the same
// version-guarded critical section. An unguarded check-then-write would let
// two concurrent transfers both pass the check.
func (r *AccountRepo) Debit(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		account, err := r.lockRead(ctx, tx, id)
		if err != nil {
			return decimal.Zero, err
		}

		if account.Balance.LessThan(amount) {
			return decimal.Zero, fmt.Errorf("%w: maximum transferable amount is %s %s",
				domain.ErrInsufficientBalance, account.Balance.StringFixed(2), account.Currency)
		}

		next := account.Balance.Sub(amount)
		ok, err := r.versionedWrite(ctx, tx, id, account.Version, next)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return next, nil
		}
	}
	return decimal.Zero, domain.ErrConcurrentUpdate
}

func (r *AccountRepo) HasTransactions(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("source_account_id = ? OR destination_account_id = ?", id, id).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepo) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&domain.Account{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%d", domain.ErrAccountNotFound, id)
	}
	return nil
}

func (r *AccountRepo) lockRead(ctx context.Context, tx *gorm.DB, id int64) (*domain.Account, error) {
	var account domain.Account
	if err := tx.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", domain.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepo) versionedWrite(ctx context.Context, tx *gorm.DB, id, version int64, balance decimal.Decimal) (bool, error) {
	result := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
