package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// SweepService runs the periodic maintenance passes: reclassifying past-due
// pending obligations as overdue, and advancing installment counters. Both
// passes are idempotent; re-running them on the same date is a no-op.
type SweepService struct {
	db           *gorm.DB
	transactions domain.TransactionRepository
	debts        domain.DebtRepository
	logger       *zap.Logger
}

func NewSweepService(db *gorm.DB, transactions domain.TransactionRepository, debts domain.DebtRepository, logger *zap.Logger) *SweepService {
	return &SweepService{db: db, transactions: transactions, debts: debts, logger: logger}
}

// overdueTypes are the scheduled-obligation transaction types the sweep
// reclassifies.
var overdueTypes = []domain.TransactionType{domain.TypeLoanPayment, domain.TypeDebtPayment}

// Run flips pending loan/debt payments and debts dated strictly before asOf
// to overdue and returns the number of rows changed.
func (s *SweepService) Run(ctx context.Context, asOf time.Time) (int64, error) {
	txCount, err := s.transactions.MarkOverdue(ctx, overdueTypes, asOf)
	if err != nil {
		return 0, err
	}
	debtCount, err := s.debts.MarkOverdue(ctx, asOf)
	if err != nil {
		return txCount, err
	}

	total := txCount + debtCount
	if total > 0 {
		s.logger.Info("overdue sweep completed",
			zap.Int64("transactions", txCount),
			zap.Int64("debts", debtCount),
			zap.Time("as_of", asOf),
		)
	}
	return total, nil
}

// AdvanceInstallments recomputes the remaining installment count of every
// open plan from the months elapsed since the purchase date. Because the
// count is derived from the purchase date rather than decremented, re-runs
// converge to the same value.
func (s *SweepService) AdvanceInstallments(ctx context.Context, asOf time.Time) (int64, error) {
	open, err := s.transactions.ListOpenInstallments(ctx)
	if err != nil {
		return 0, err
	}

	var changed int64
	for i := range open {
		t := &open[i]
		elapsed := monthsBetween(t.Date, asOf)
		remaining := t.Installment.Count - elapsed
		if remaining < 0 {
			remaining = 0
		}
		if remaining == t.Installment.Remaining {
			continue
		}

		t.Installment.Remaining = remaining
		if err := s.transactions.Update(ctx, s.db, t); err != nil {
			return changed, err
		}
		changed++
	}

	if changed > 0 {
		s.logger.Info("installment plans advanced", zap.Int64("count", changed))
	}
	return changed, nil
}

// monthsBetween counts full calendar months from from to to.
func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months
}
