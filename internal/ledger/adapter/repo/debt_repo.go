package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

type DebtRepo struct {
	db *gorm.DB
}

func NewDebtRepo(db *gorm.DB) *DebtRepo {
	return &DebtRepo{db: db}
}

func (r *DebtRepo) FindByID(ctx context.Context, id int64) (*domain.Debt, error) {
	var debt domain.Debt
	if err := r.db.WithContext(ctx).First(&debt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("debt %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, err
	}
	return &debt, nil
}

func (r *DebtRepo) Create(ctx context.Context, debt *domain.Debt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *DebtRepo) UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus) error {
	return r.db.WithContext(ctx).Model(&domain.Debt{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *DebtRepo) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Debt{}).
		Where("status = ? AND due_date < ?", domain.StatusPending, cutoff).
		Update("status", domain.StatusOverdue)
	return result.RowsAffected, result.Error
}
