package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) Create(ctx context.Context, tx *gorm.DB, t *domain.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepo) Update(ctx context.Context, tx *gorm.DB, t *domain.Transaction) error {
	return tx.WithContext(ctx).Save(t).Error
}

func (r *TransactionRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Delete(&domain.Transaction{}, id).Error
}

func (r *TransactionRepo) SetReference(ctx context.Context, tx *gorm.DB, id, referenceID int64) error {
	return tx.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("reference_id", referenceID).Error
}

func (r *TransactionRepo) MarkOverdue(ctx context.Context, types []domain.TransactionType, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("type IN ? AND status = ? AND date < ?", types, domain.StatusPending, cutoff).
		Update("status", domain.StatusOverdue)
	return result.RowsAffected, result.Error
}

// ListOpenInstallments loads rows with an installment payload and filters on
// the remaining count in memory; the payload is an opaque JSON column.
func (r *TransactionRepo) ListOpenInstallments(ctx context.Context) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	err := r.db.WithContext(ctx).
		Where("installment IS NOT NULL").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	open := rows[:0]
	for _, t := range rows {
		if t.Installment != nil && t.Installment.Remaining > 0 {
			open = append(open, t)
		}
	}
	return open, nil
}

func (r *TransactionRepo) SumCompletedDebtPayments(ctx context.Context, debtID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("debt_id = ? AND type = ? AND status = ?", debtID, domain.TypeDebtPayment, domain.StatusCompleted).
		Scan(&total).Error
	return total, err
}
