package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// DebtService tracks standalone receivable/payable obligations. Linked
// debt-payment transactions reduce the remaining amount; the debt completes
// once remaining reaches zero.
type DebtService struct {
	debts        domain.DebtRepository
	transactions domain.TransactionRepository
	customers    domain.LookupRepository
	suppliers    domain.LookupRepository
	logger       *zap.Logger
}

func NewDebtService(
	debts domain.DebtRepository,
	transactions domain.TransactionRepository,
	customers domain.LookupRepository,
	suppliers domain.LookupRepository,
	logger *zap.Logger,
) *DebtService {
	return &DebtService{
		debts:        debts,
		transactions: transactions,
		customers:    customers,
		suppliers:    suppliers,
		logger:       logger,
	}
}

type CreateDebtRequest struct {
	OwnerID    int64
	Type       domain.DebtType
	CustomerID *int64
	SupplierID *int64
	Amount     string
	Currency   string
	DueDate    time.Time
}

func (s *DebtService) Create(ctx context.Context, req CreateDebtRequest) (*domain.Debt, error) {
	if req.Type != domain.DebtReceivable && req.Type != domain.DebtPayable {
		return nil, fmt.Errorf("%w: unknown debt type %q", domain.ErrValidation, req.Type)
	}
	// The counterparty is a customer or a supplier, never both.
	if (req.CustomerID == nil) == (req.SupplierID == nil) {
		return nil, fmt.Errorf("%w: exactly one of customer or supplier is required", domain.ErrValidation)
	}
	if req.CustomerID != nil {
		ok, err := s.customers.Exists(ctx, *req.CustomerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: customer %d does not exist", domain.ErrValidation, *req.CustomerID)
		}
	}
	if req.SupplierID != nil {
		ok, err := s.suppliers.Exists(ctx, *req.SupplierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: supplier %d does not exist", domain.ErrValidation, *req.SupplierID)
		}
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	debt := &domain.Debt{
		OwnerID:    req.OwnerID,
		Type:       req.Type,
		CustomerID: req.CustomerID,
		SupplierID: req.SupplierID,
		Amount:     amount,
		Currency:   req.Currency,
		DueDate:    req.DueDate,
		Status:     domain.StatusPending,
	}
	if err := s.debts.Create(ctx, debt); err != nil {
		return nil, err
	}
	return debt, nil
}

func (s *DebtService) Get(ctx context.Context, id int64) (*domain.Debt, error) {
	return s.debts.FindByID(ctx, id)
}

// Remaining is the debt amount minus the sum of completed linked payments.
func (s *DebtService) Remaining(ctx context.Context, id int64) (decimal.Decimal, error) {
	debt, err := s.debts.FindByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := s.transactions.SumCompletedDebtPayments(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return debt.Amount.Sub(paid), nil
}

// Refresh re-derives the debt's status from its remaining amount. Called
// after linked payments change; best-effort relative to the payment itself.
func (s *DebtService) Refresh(ctx context.Context, id int64) error {
	debt, err := s.debts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	remaining, err := s.Remaining(ctx, id)
	if err != nil {
		return err
	}

	var status domain.TransactionStatus
	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		status = domain.StatusCompleted
	case debt.Status == domain.StatusCompleted:
		// A payment was edited or deleted; the obligation is open again.
		status = domain.StatusPending
	default:
		return nil
	}
	if status == debt.Status {
		return nil
	}

	s.logger.Info("debt status changed",
		zap.Int64("debt_id", id),
		zap.String("status", string(status)),
		zap.String("remaining", remaining.String()),
	)
	return s.debts.UpdateStatus(ctx, id, status)
}
