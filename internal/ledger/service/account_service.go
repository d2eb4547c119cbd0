package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// AccountService owns account lifecycle and is the gateway to balance reads.
// Balance writes go through the repository inside the engines' transactions.
type AccountService struct {
	accounts domain.AccountRepository
	logger   *zap.Logger
}

func NewAccountService(accounts domain.AccountRepository, logger *zap.Logger) *AccountService {
	return &AccountService{accounts: accounts, logger: logger}
}

// CreateAccountRequest carries user-supplied account attributes.
type CreateAccountRequest struct {
	OwnerID  int64
	Name     string
	Kind     domain.AccountKind
	Currency string
	Balance  string
	Detail   *domain.AccountDetail
}

func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown account kind %q", domain.ErrValidation, req.Kind)
	}
	if len(req.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code, got %q", domain.ErrValidation, req.Currency)
	}

	balance := decimal.Zero
	if req.Balance != "" {
		parsed, err := decimal.NewFromString(req.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: balance %q is not a number", domain.ErrValidation, req.Balance)
		}
		balance = parsed
	}
	if req.Kind == domain.KindCreditCard && balance.IsNegative() {
		balance = decimal.Zero
	}

	account := &domain.Account{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Kind:     req.Kind,
		Currency: req.Currency,
		Balance:  balance,
		Detail:   req.Detail,
		Active:   true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("kind", string(account.Kind)),
		zap.String("currency", account.Currency),
	)
	return account, nil
}

// ProvisionCash returns the cash account for (owner, currency), creating it
// with a zero balance on first use. Losing a create race is resolved by
// re-reading.
func (s *AccountService) ProvisionCash(ctx context.Context, ownerID int64, currency string) (*domain.Account, error) {
	account, err := s.accounts.FindCash(ctx, ownerID, currency)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account = &domain.Account{
		OwnerID:  ownerID,
		Name:     "Cash " + currency,
		Kind:     domain.KindCash,
		Currency: currency,
		Balance:  decimal.Zero,
		Active:   true,
	}
	if createErr := s.accounts.Create(ctx, account); createErr != nil {
		if existing, findErr := s.accounts.FindCash(ctx, ownerID, currency); findErr == nil {
			return existing, nil
		}
		return nil, createErr
	}

	s.logger.Info("cash account provisioned",
		zap.Int64("owner_id", ownerID),
		zap.String("currency", currency),
	)
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Delete soft-deletes an account. Accounts referenced by transactions are
// kept; only the soft-delete marker would hide history otherwise.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	referenced, err := s.accounts.HasTransactions(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: account %d is referenced by transactions", domain.ErrValidation, id)
	}
	return s.accounts.SoftDelete(ctx, id)
}
