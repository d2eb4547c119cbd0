package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// LookupRepo answers id-valid existence checks for referential attachments.
type LookupRepo struct {
	db    *gorm.DB
	model interface{}
}

func NewCategoryLookup(db *gorm.DB) *LookupRepo {
	return &LookupRepo{db: db, model: &domain.Category{}}
}

func NewCustomerLookup(db *gorm.DB) *LookupRepo {
	return &LookupRepo{db: db, model: &domain.Customer{}}
}

func NewSupplierLookup(db *gorm.DB) *LookupRepo {
	return &LookupRepo{db: db, model: &domain.Supplier{}}
}

func (r *LookupRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(r.model).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// OwnerRepo resolves acting users.
type OwnerRepo struct {
	db *gorm.DB
}

func NewOwnerRepo(db *gorm.DB) *OwnerRepo {
	return &OwnerRepo{db: db}
}

func (r *OwnerRepo) FindByID(ctx context.Context, id int64) (*domain.Owner, error) {
	var owner domain.Owner
	if err := r.db.WithContext(ctx).First(&owner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("owner %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, err
	}
	return &owner, nil
}
