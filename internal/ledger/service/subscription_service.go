package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// SubscriptionService rolls recurring transactions forward. The next
// occurrence is always computed from the stored next-payment date, never
// from "today", so repeated rollovers do not drift.
type SubscriptionService struct {
	db           *gorm.DB
	transactions domain.TransactionRepository
	logger       *zap.Logger
}

func NewSubscriptionService(db *gorm.DB, transactions domain.TransactionRepository, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{db: db, transactions: transactions, logger: logger}
}

// nextDate advances from by one subscription period.
func nextDate(period domain.SubscriptionPeriod, from time.Time) (time.Time, error) {
	switch period {
	case domain.PeriodDaily:
		return from.AddDate(0, 0, 1), nil
	case domain.PeriodWeekly:
		return from.AddDate(0, 0, 7), nil
	case domain.PeriodMonthly:
		return from.AddDate(0, 1, 0), nil
	case domain.PeriodQuarterly:
		return from.AddDate(0, 3, 0), nil
	case domain.PeriodBiannually:
		return from.AddDate(0, 6, 0), nil
	case domain.PeriodAnnually:
		return from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown subscription period %q", domain.ErrValidation, period)
	}
}

// NextOccurrence returns the transaction's next payment date advanced by one
// period.
func (s *SubscriptionService) NextOccurrence(t *domain.Transaction) (time.Time, error) {
	if t.Subscription == nil {
		return time.Time{}, fmt.Errorf("%w: transaction %d is not a subscription", domain.ErrValidation, t.ID)
	}
	return nextDate(t.Subscription.Period, t.Subscription.NextPaymentDate)
}

// RollForward advances the original subscription's next payment date after a
// copied instance has been created.
func (s *SubscriptionService) RollForward(ctx context.Context, originalID int64) error {
	original, err := s.transactions.FindByID(ctx, originalID)
	if err != nil {
		return err
	}
	if original.Subscription == nil {
		// Copies of ordinary transactions carry a reference id too; nothing
		// to roll in that case.
		return nil
	}

	next, err := s.NextOccurrence(original)
	if err != nil {
		return err
	}
	original.Subscription.NextPaymentDate = next
	if err := s.transactions.Update(ctx, s.db, original); err != nil {
		return err
	}

	s.logger.Info("subscription rolled forward",
		zap.Int64("transaction_id", originalID),
		zap.Time("next_payment_date", next),
	)
	return nil
}

// End clears the subscription payload. Irreversible.
func (s *SubscriptionService) End(ctx context.Context, id int64) error {
	t, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Subscription == nil {
		return fmt.Errorf("%w: transaction %d is not a subscription", domain.ErrValidation, id)
	}
	t.Subscription = nil
	return s.transactions.Update(ctx, s.db, t)
}
