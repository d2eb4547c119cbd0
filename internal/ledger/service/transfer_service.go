package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// TransferService moves money between two accounts as a linked pair of
// transaction rows: a negative outgoing row in the source currency and a
// positive incoming row in the destination currency, mutually referencing
// each other. Both rows and both balance mutations commit in one atomic
// unit; a one-sided transfer is never observable.
type TransferService struct {
	db           *gorm.DB
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	rates        domain.RateProvider
	notifier     domain.NotificationSink
	logger       *zap.Logger
	baseCurrency string
}

func NewTransferService(
	db *gorm.DB,
	accounts domain.AccountRepository,
	transactions domain.TransactionRepository,
	rates domain.RateProvider,
	notifier domain.NotificationSink,
	logger *zap.Logger,
	baseCurrency string,
) *TransferService {
	return &TransferService{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		rates:        rates,
		notifier:     notifier,
		logger:       logger,
		baseCurrency: baseCurrency,
	}
}

type TransferRequest struct {
	OwnerID              int64
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               string
	Date                 time.Time
	Description          string

	// TargetAmount overrides the computed settlement amount (user-edited).
	TargetAmount string
	// ExplicitRate overrides cross-rate resolution entirely.
	ExplicitRate string
}

type TransferResult struct {
	Outgoing *domain.Transaction
	Incoming *domain.Transaction
}

func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.SourceAccountID == req.DestinationAccountID {
		return nil, fmt.Errorf("%w: source and destination accounts must differ", domain.ErrValidation)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	source, err := s.accounts.FindByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, err
	}
	dest, err := s.accounts.FindByID(ctx, req.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != req.OwnerID || dest.OwnerID != req.OwnerID {
		return nil, fmt.Errorf("%w: accounts belong to another owner", domain.ErrValidation)
	}

	// Fast-fail on an obviously short balance; the authoritative check
	// happens inside the critical section below.
	if source.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: maximum transferable amount is %s %s",
			domain.ErrInsufficientBalance, source.Balance.StringFixed(2), source.Currency)
	}

	crossRate, err := s.resolveCrossRate(ctx, source.Currency, dest.Currency, req.Date, req.ExplicitRate)
	if err != nil {
		return nil, err
	}

	target := amount.Mul(crossRate).Round(4)
	if override, ok, err := parseOptional(req.TargetAmount); err != nil {
		return nil, err
	} else if ok {
		if override.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: target amount must be positive", domain.ErrValidation)
		}
		target = override
	}

	// Each row carries its own account currency's buying rate to base; the
	// cross rate only determines the settlement amount.
	sourceRate, err := s.rateToBase(ctx, source.Currency, req.Date)
	if err != nil {
		return nil, err
	}
	destRate, err := s.rateToBase(ctx, dest.Currency, req.Date)
	if err != nil {
		return nil, err
	}

	groupID := uuid.NewString()
	outgoing := &domain.Transaction{
		OwnerID:         req.OwnerID,
		Type:            domain.TypeTransfer,
		Status:          domain.StatusCompleted,
		Amount:          amount.Neg(),
		Currency:        source.Currency,
		ExchangeRate:    sourceRate,
		BaseAmount:      amount.Neg().Mul(sourceRate).Round(2),
		Date:            req.Date,
		Description:     req.Description,
		SourceAccountID: &source.ID,
		GroupID:         groupID,
	}
	incoming := &domain.Transaction{
		OwnerID:              req.OwnerID,
		Type:                 domain.TypeTransfer,
		Status:               domain.StatusCompleted,
		Amount:               target,
		Currency:             dest.Currency,
		ExchangeRate:         destRate,
		BaseAmount:           target.Mul(destRate).Round(2),
		Date:                 req.Date,
		Description:          req.Description,
		DestinationAccountID: &dest.ID,
		GroupID:              groupID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.accounts.Debit(ctx, tx, source.ID, amount); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, outgoing); err != nil {
			return err
		}
		if _, err := s.accounts.AdjustBalance(ctx, tx, dest.ID, target); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, incoming); err != nil {
			return err
		}
		// The rows link after both exist; the ids are only known now.
		if err := s.transactions.SetReference(ctx, tx, outgoing.ID, incoming.ID); err != nil {
			return err
		}
		return s.transactions.SetReference(ctx, tx, incoming.ID, outgoing.ID)
	})
	if err != nil {
		s.notifier.Notify(domain.NotifyFailure, "transfer rejected: "+err.Error())
		return nil, err
	}
	outgoing.ReferenceID = &incoming.ID
	incoming.ReferenceID = &outgoing.ID

	s.logger.Info("transfer committed",
		zap.Int64("outgoing_id", outgoing.ID),
		zap.Int64("incoming_id", incoming.ID),
		zap.String("amount", amount.String()),
		zap.String("cross_rate", crossRate.String()),
	)
	s.notifier.Notify(domain.NotifySuccess, fmt.Sprintf("transfer %s committed", groupID))
	return &TransferResult{Outgoing: outgoing, Incoming: incoming}, nil
}

// resolveCrossRate derives the effective rate between two currencies through
// the base currency, applying the buy/sell spread asymmetrically:
//
//	same currency        -> 1 (no lookup, even off the base currency)
//	source is base       -> 1 / selling(dest)
//	destination is base  -> buying(source)
//	neither is base      -> buying(source) / selling(dest)
//
// The business buys the destination currency at its selling quote and sells
// the source currency at its buying quote.
func (s *TransferService) resolveCrossRate(ctx context.Context, from, to string, date time.Time, explicit string) (decimal.Decimal, error) {
	if explicit != "" {
		rate, err := decimal.NewFromString(explicit)
		if err != nil || rate.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, fmt.Errorf("%w: explicit rate %q must be a positive number", domain.ErrValidation, explicit)
		}
		return rate, nil
	}

	if from == to {
		return one, nil
	}
	if from == s.baseCurrency {
		quote, err := s.quote(ctx, to, date)
		if err != nil {
			return decimal.Zero, err
		}
		return one.Div(quote.Selling), nil
	}
	if to == s.baseCurrency {
		quote, err := s.quote(ctx, from, date)
		if err != nil {
			return decimal.Zero, err
		}
		return quote.Buying, nil
	}

	fromQuote, err := s.quote(ctx, from, date)
	if err != nil {
		return decimal.Zero, err
	}
	toQuote, err := s.quote(ctx, to, date)
	if err != nil {
		return decimal.Zero, err
	}
	return fromQuote.Buying.Div(toQuote.Selling), nil
}

func (s *TransferService) rateToBase(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == s.baseCurrency {
		return one, nil
	}
	quote, err := s.quote(ctx, currency, date)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Buying, nil
}

func (s *TransferService) quote(ctx context.Context, currency string, date time.Time) (domain.Quote, error) {
	quote, err := s.rates.Rate(ctx, currency, date)
	if err != nil {
		if errors.Is(err, domain.ErrRateUnavailable) {
			return domain.Quote{}, fmt.Errorf("%w for %s on %s, enter the rate manually",
				domain.ErrRateUnavailable, currency, date.Format("2006-01-02"))
		}
		return domain.Quote{}, err
	}
	return quote, nil
}
