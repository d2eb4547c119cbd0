package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// CommissionService maintains derived commission records for income
// transactions of commission-eligible owners. It is best-effort bookkeeping:
// callers log its errors as warnings and never roll back the transaction.
type CommissionService struct {
	commissions domain.CommissionRepository
	owners      domain.OwnerRepository
	logger      *zap.Logger
}

func NewCommissionService(commissions domain.CommissionRepository, owners domain.OwnerRepository, logger *zap.Logger) *CommissionService {
	return &CommissionService{commissions: commissions, owners: owners, logger: logger}
}

// OnCreated derives a commission for a freshly created income transaction.
// Owners without a commission rate are skipped.
func (s *CommissionService) OnCreated(ctx context.Context, t *domain.Transaction) error {
	if t.Type != domain.TypeIncome {
		return nil
	}

	owner, err := s.owners.FindByID(ctx, t.OwnerID)
	if err != nil {
		return err
	}
	if owner.CommissionRate.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	commission := &domain.Commission{
		OwnerID:       t.OwnerID,
		TransactionID: t.ID,
		Rate:          owner.CommissionRate,
		Amount:        percentOf(t.Amount, owner.CommissionRate),
	}
	if err := s.commissions.Create(ctx, commission); err != nil {
		return err
	}

	s.logger.Info("commission recorded",
		zap.Int64("transaction_id", t.ID),
		zap.String("amount", commission.Amount.String()),
	)
	return nil
}

// OnUpdated recomputes the linked commission's amount with its stored rate
// after the source transaction's amount changed.
func (s *CommissionService) OnUpdated(ctx context.Context, t *domain.Transaction) error {
	if t.Type != domain.TypeIncome {
		return nil
	}

	commission, err := s.commissions.FindByTransaction(ctx, t.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The owner may have become eligible after the original create.
			return s.OnCreated(ctx, t)
		}
		return err
	}

	commission.Amount = percentOf(t.Amount, commission.Rate)
	return s.commissions.Update(ctx, commission)
}

// OnDeleted removes the commission linked to a deleted transaction.
func (s *CommissionService) OnDeleted(ctx context.Context, transactionID int64) error {
	return s.commissions.DeleteByTransaction(ctx, transactionID)
}
