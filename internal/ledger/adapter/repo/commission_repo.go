package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

type CommissionRepo struct {
	db *gorm.DB
}

func NewCommissionRepo(db *gorm.DB) *CommissionRepo {
	return &CommissionRepo{db: db}
}

func (r *CommissionRepo) FindByTransaction(ctx context.Context, transactionID int64) (*domain.Commission, error) {
	var c domain.Commission
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepo) Create(ctx context.Context, c *domain.Commission) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommissionRepo) Update(ctx context.Context, c *domain.Commission) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *CommissionRepo) DeleteByTransaction(ctx context.Context, transactionID int64) error {
	return r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Delete(&domain.Commission{}).Error
}
