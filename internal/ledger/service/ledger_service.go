package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// Lookups bundles the referential existence checks consumed by the engine.
type Lookups struct {
	Categories domain.LookupRepository
	Customers  domain.LookupRepository
	Suppliers  domain.LookupRepository
}

// LedgerServiceDeps wires the engine's collaborators.
type LedgerServiceDeps struct {
	DB            *gorm.DB
	Accounts      domain.AccountRepository
	AccountSvc    *AccountService
	Transactions  domain.TransactionRepository
	Lookups       Lookups
	Rates         domain.RateProvider
	Commissions   *CommissionService
	Subscriptions *SubscriptionService
	Debts         *DebtService
	Notifier      domain.NotificationSink
	Logger        *zap.Logger
	BaseCurrency  string
}

// LedgerService validates and creates, updates and deletes transactions,
// computing every derived monetary field and applying balance mutations
// inside one atomic unit of work. Secondary effects (commission, subscription
// rollover, debt status, notifications) run after commit and never roll the
// primary operation back.
type LedgerService struct {
	db            *gorm.DB
	accounts      domain.AccountRepository
	accountSvc    *AccountService
	transactions  domain.TransactionRepository
	lookups       Lookups
	rates         domain.RateProvider
	commissions   *CommissionService
	subscriptions *SubscriptionService
	debts         *DebtService
	notifier      domain.NotificationSink
	logger        *zap.Logger
	baseCurrency  string
}

func NewLedgerService(d LedgerServiceDeps) *LedgerService {
	return &LedgerService{
		db:            d.DB,
		accounts:      d.Accounts,
		accountSvc:    d.AccountSvc,
		transactions:  d.Transactions,
		lookups:       d.Lookups,
		rates:         d.Rates,
		commissions:   d.Commissions,
		subscriptions: d.Subscriptions,
		debts:         d.Debts,
		notifier:      d.Notifier,
		logger:        d.Logger,
		baseCurrency:  d.BaseCurrency,
	}
}

// CreateTransactionRequest is the engine's input DTO. Monetary values travel
// as strings to avoid float precision loss.
type CreateTransactionRequest struct {
	OwnerID  int64
	Type     domain.TransactionType
	Amount   string
	Currency string
	Date     time.Time

	// Method selects cash auto-provisioning; AccountID is the explicitly
	// chosen account, required for every non-cash method.
	Method    domain.PaymentMethod
	AccountID *int64
	// CounterAccountID is the second leg of credit card payments (the card
	// being paid down).
	CounterAccountID *int64

	Description string
	Fee         string
	Status      domain.TransactionStatus

	CategoryID *int64
	CustomerID *int64
	SupplierID *int64
	DebtID     *int64

	// ReferenceID points at the original when this row was created by
	// copying a subscription instance; the original rolls forward as a
	// side effect.
	ReferenceID *int64

	// ManualRate overrides the provider quote when none is available.
	ManualRate string

	Installments int

	Taxable         bool
	TaxRate         string
	Withholding     bool
	WithholdingRate string

	Subscription    bool
	Period          domain.SubscriptionPeriod
	NextPaymentDate time.Time
}

// balanceEffect is one signed balance mutation of an atomic unit of work.
type balanceEffect struct {
	accountID int64
	delta     decimal.Decimal
	// checked effects go through Debit so insufficiency fails the unit.
	checked bool
}

// CreateTransaction validates the request, resolves accounts and rates,
// derives all monetary fields and persists the row together with its balance
// mutations.
func (s *LedgerService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, req.Type)
	}
	if req.Type == domain.TypeTransfer {
		return nil, fmt.Errorf("%w: transfers are created through the transfer endpoint", domain.ErrValidation)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	fee := decimal.Zero
	if f, ok, err := parseOptional(req.Fee); err != nil {
		return nil, err
	} else if ok {
		fee = f
	}
	if err := s.checkAttachments(ctx, req); err != nil {
		return nil, err
	}

	source, dest, err := s.resolveAccounts(ctx, req)
	if err != nil {
		return nil, err
	}

	rate, err := s.resolveRate(ctx, req.Currency, req.Date, req.ManualRate)
	if err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		OwnerID:      req.OwnerID,
		Type:         req.Type,
		Status:       req.Status,
		Amount:       amount,
		Currency:     req.Currency,
		ExchangeRate: rate,
		Fee:          fee,
		Date:         req.Date,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		CustomerID:   req.CustomerID,
		SupplierID:   req.SupplierID,
		DebtID:       req.DebtID,
		ReferenceID:  req.ReferenceID,
	}
	if t.Status == "" {
		t.Status = domain.StatusCompleted
	}
	if source != nil {
		t.SourceAccountID = &source.ID
	}
	if dest != nil {
		t.DestinationAccountID = &dest.ID
	}
	if err := s.derive(t, req, source); err != nil {
		return nil, err
	}

	effects := effectsFor(t.Type, amount, source, dest)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactions.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.applyEffects(ctx, tx, effects)
	})
	if err != nil {
		s.notifier.Notify(domain.NotifyFailure, "transaction rejected: "+err.Error())
		return nil, err
	}

	s.afterWrite(ctx, t, req.ReferenceID)
	s.logger.Info("transaction created",
		zap.Int64("transaction_id", t.ID),
		zap.String("type", string(t.Type)),
		zap.String("amount", t.Amount.String()),
		zap.String("currency", t.Currency),
	)
	s.notifier.Notify(domain.NotifySuccess, fmt.Sprintf("transaction %d created", t.ID))
	return t, nil
}

// UpdateTransaction recomputes every derived field exactly as in create and
// re-applies balances only for the difference: the old effects are reversed
// and the new ones applied within one atomic unit.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, req CreateTransactionRequest) (*domain.Transaction, error) {
	existing, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Type.Immutable() {
		return nil, fmt.Errorf("%w: %s transactions are immutable once created", domain.ErrValidation, existing.Type)
	}
	if req.Type != existing.Type {
		return nil, fmt.Errorf("%w: transaction type cannot change on update", domain.ErrValidation)
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkAttachments(ctx, req); err != nil {
		return nil, err
	}

	oldSource, oldDest, err := s.loadSides(ctx, existing)
	if err != nil {
		return nil, err
	}
	oldDebtID := existing.DebtID
	source, dest, err := s.resolveAccounts(ctx, req)
	if err != nil {
		return nil, err
	}
	rate, err := s.resolveRate(ctx, req.Currency, req.Date, req.ManualRate)
	if err != nil {
		return nil, err
	}

	oldEffects := effectsFor(existing.Type, existing.Amount, oldSource, oldDest)

	existing.Amount = amount
	existing.Currency = req.Currency
	existing.ExchangeRate = rate
	existing.Date = req.Date
	existing.Description = req.Description
	existing.CategoryID = req.CategoryID
	existing.CustomerID = req.CustomerID
	existing.SupplierID = req.SupplierID
	existing.DebtID = req.DebtID
	if f, ok, err := parseOptional(req.Fee); err != nil {
		return nil, err
	} else if ok {
		existing.Fee = f
	}
	existing.SourceAccountID = nil
	existing.DestinationAccountID = nil
	if source != nil {
		existing.SourceAccountID = &source.ID
	}
	if dest != nil {
		existing.DestinationAccountID = &dest.ID
	}
	if err := s.derive(existing, req, source); err != nil {
		return nil, err
	}

	newEffects := effectsFor(existing.Type, amount, source, dest)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.applyEffects(ctx, tx, reversed(oldEffects)); err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, newEffects); err != nil {
			return err
		}
		return s.transactions.Update(ctx, tx, existing)
	})
	if err != nil {
		return nil, err
	}

	if existing.Type == domain.TypeIncome {
		if err := s.commissions.OnUpdated(ctx, existing); err != nil {
			s.logger.Warn("commission update failed", zap.Int64("transaction_id", id), zap.Error(err))
		}
	}
	s.refreshDebt(ctx, existing.DebtID)
	// Re-linking the payment leaves the previous debt without this payment's
	// contribution; its status has to be re-derived too.
	if oldDebtID != nil && (existing.DebtID == nil || *existing.DebtID != *oldDebtID) {
		s.refreshDebt(ctx, oldDebtID)
	}
	s.logger.Info("transaction updated", zap.Int64("transaction_id", id))
	return existing, nil
}

// DeleteTransaction reverses the balance mutation and removes the row.
// Structurally paired or derived types are refused: deleting one side would
// corrupt the pair or a scheduled obligation.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	existing, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Type.Immutable() {
		return fmt.Errorf("%w: %s", domain.ErrDeletionNotAllowed, existing.Type)
	}

	source, dest, err := s.loadSides(ctx, existing)
	if err != nil {
		return err
	}
	effects := effectsFor(existing.Type, existing.Amount, source, dest)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.applyEffects(ctx, tx, reversed(effects)); err != nil {
			return err
		}
		return s.transactions.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if existing.Type == domain.TypeIncome {
		if err := s.commissions.OnDeleted(ctx, id); err != nil {
			s.logger.Warn("commission delete failed", zap.Int64("transaction_id", id), zap.Error(err))
		}
	}
	s.refreshDebt(ctx, existing.DebtID)
	s.logger.Info("transaction deleted", zap.Int64("transaction_id", id))
	return nil
}

// resolveAccounts maps the request onto the accounts the transaction type
// touches. Cash methods auto-provision the per-currency cash account.
func (s *LedgerService) resolveAccounts(ctx context.Context, req CreateTransactionRequest) (source, dest *domain.Account, err error) {
	switch req.Type {
	case domain.TypeIncome:
		dest, err = s.pickAccount(ctx, req)
		return nil, dest, err

	case domain.TypeExpense, domain.TypeLoanPayment:
		source, err = s.pickAccount(ctx, req)
		return source, nil, err

	case domain.TypeDebtPayment:
		// Receivable collections come in, payable payments go out.
		incoming := false
		if req.DebtID != nil {
			debt, derr := s.debts.Get(ctx, *req.DebtID)
			if derr != nil {
				return nil, nil, derr
			}
			incoming = debt.Type == domain.DebtReceivable
		}
		account, aerr := s.pickAccount(ctx, req)
		if aerr != nil {
			return nil, nil, aerr
		}
		if incoming {
			return nil, account, nil
		}
		return account, nil, nil

	case domain.TypeCreditCardPayment:
		if req.AccountID == nil || req.CounterAccountID == nil {
			return nil, nil, fmt.Errorf("%w: credit card payments need a paying account and a card", domain.ErrValidation)
		}
		source, err = s.accounts.FindByID(ctx, *req.AccountID)
		if err != nil {
			return nil, nil, err
		}
		dest, err = s.accounts.FindByID(ctx, *req.CounterAccountID)
		if err != nil {
			return nil, nil, err
		}
		if dest.Kind != domain.KindCreditCard {
			return nil, nil, fmt.Errorf("%w: account %d is not a credit card", domain.ErrValidation, dest.ID)
		}
		return source, dest, nil

	case domain.TypeATMDeposit:
		if req.AccountID == nil {
			return nil, nil, fmt.Errorf("%w: ATM deposits need a destination bank account", domain.ErrValidation)
		}
		dest, err = s.accounts.FindByID(ctx, *req.AccountID)
		if err != nil {
			return nil, nil, err
		}
		source, err = s.accountSvc.ProvisionCash(ctx, req.OwnerID, req.Currency)
		return source, dest, err

	case domain.TypeATMWithdraw:
		if req.AccountID == nil {
			return nil, nil, fmt.Errorf("%w: ATM withdrawals need a source bank account", domain.ErrValidation)
		}
		source, err = s.accounts.FindByID(ctx, *req.AccountID)
		if err != nil {
			return nil, nil, err
		}
		dest, err = s.accountSvc.ProvisionCash(ctx, req.OwnerID, req.Currency)
		return source, dest, err
	}
	return nil, nil, fmt.Errorf("%w: unsupported transaction type %q", domain.ErrValidation, req.Type)
}

func (s *LedgerService) pickAccount(ctx context.Context, req CreateTransactionRequest) (*domain.Account, error) {
	if req.Method == domain.MethodCash {
		return s.accountSvc.ProvisionCash(ctx, req.OwnerID, req.Currency)
	}
	if req.AccountID == nil {
		return nil, fmt.Errorf("%w: an account is required for non-cash payments", domain.ErrValidation)
	}
	return s.accounts.FindByID(ctx, *req.AccountID)
}

func (s *LedgerService) loadSides(ctx context.Context, t *domain.Transaction) (source, dest *domain.Account, err error) {
	if t.SourceAccountID != nil {
		source, err = s.accounts.FindByID(ctx, *t.SourceAccountID)
		if err != nil {
			return nil, nil, err
		}
	}
	if t.DestinationAccountID != nil {
		dest, err = s.accounts.FindByID(ctx, *t.DestinationAccountID)
		if err != nil {
			return nil, nil, err
		}
	}
	return source, dest, nil
}

// resolveRate returns the rate to the base currency: 1 for the base currency
// itself, the manual override when supplied, otherwise the provider's buying
// quote for the date.
func (s *LedgerService) resolveRate(ctx context.Context, currency string, date time.Time, manual string) (decimal.Decimal, error) {
	if currency == s.baseCurrency {
		return one, nil
	}
	if manual != "" {
		rate, err := decimal.NewFromString(manual)
		if err != nil || rate.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, fmt.Errorf("%w: manual rate %q must be a positive number", domain.ErrValidation, manual)
		}
		return rate, nil
	}

	quote, err := s.rates.Rate(ctx, currency, date)
	if err != nil {
		if errors.Is(err, domain.ErrRateUnavailable) {
			return decimal.Zero, fmt.Errorf("%w for %s on %s, enter the rate manually",
				domain.ErrRateUnavailable, currency, date.Format("2006-01-02"))
		}
		return decimal.Zero, err
	}
	return quote.Buying, nil
}

// derive recomputes base equivalent, tax, withholding, installment and
// subscription payloads on t from the request.
func (s *LedgerService) derive(t *domain.Transaction, req CreateTransactionRequest, source *domain.Account) error {
	if t.Currency == s.baseCurrency {
		t.BaseAmount = t.Amount
	} else {
		t.BaseAmount = t.Amount.Mul(t.ExchangeRate).Round(2)
	}

	t.Tax = nil
	if req.Taxable {
		rate, ok, err := parseOptional(req.TaxRate)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: taxable transactions need a tax rate", domain.ErrValidation)
		}
		if rate.IsNegative() {
			return fmt.Errorf("%w: tax rate must not be negative, got %s", domain.ErrValidation, rate)
		}
		detail := &domain.TaxDetail{Rate: rate, Amount: vatAmount(t.Amount, rate)}
		if req.Withholding {
			wRate, ok, err := parseOptional(req.WithholdingRate)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: withholding needs a withholding rate", domain.ErrValidation)
			}
			if wRate.IsNegative() {
				return fmt.Errorf("%w: withholding rate must not be negative, got %s", domain.ErrValidation, wRate)
			}
			wAmount := percentOf(t.Amount, wRate)
			detail.WithholdingRate = &wRate
			detail.WithholdingAmount = &wAmount
		}
		t.Tax = detail
	}

	t.Installment = nil
	if req.Installments > 1 {
		if req.Type != domain.TypeExpense || source == nil || source.Kind != domain.KindCreditCard {
			return fmt.Errorf("%w: %d installments on a %s %s", domain.ErrInvalidInstallmentContext,
				req.Installments, sourceKind(source), req.Type)
		}
		t.Installment = &domain.InstallmentPlan{
			Count:         req.Installments,
			Remaining:     req.Installments,
			MonthlyAmount: t.Amount.Div(decimal.NewFromInt(int64(req.Installments))).Round(2),
		}
	}

	t.Subscription = nil
	if req.Subscription {
		if !req.Period.IsValid() {
			return fmt.Errorf("%w: unknown subscription period %q", domain.ErrValidation, req.Period)
		}
		next := req.NextPaymentDate
		if next.IsZero() {
			advanced, err := nextDate(req.Period, req.Date)
			if err != nil {
				return err
			}
			next = advanced
		}
		t.Subscription = &domain.SubscriptionPlan{Period: req.Period, NextPaymentDate: next}
	}
	return nil
}

func (s *LedgerService) checkAttachments(ctx context.Context, req CreateTransactionRequest) error {
	check := func(repo domain.LookupRepository, id *int64, what string) error {
		if id == nil {
			return nil
		}
		ok, err := repo.Exists(ctx, *id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %d does not exist", domain.ErrValidation, what, *id)
		}
		return nil
	}
	if err := check(s.lookups.Categories, req.CategoryID, "category"); err != nil {
		return err
	}
	if err := check(s.lookups.Customers, req.CustomerID, "customer"); err != nil {
		return err
	}
	return check(s.lookups.Suppliers, req.SupplierID, "supplier")
}

// effectsFor computes the signed balance mutations of a transaction. The
// general rule is source down, destination up. Credit cards invert it:
// their balance is outstanding debt, so spending on the card grows it and
// paying the card shrinks it (clamped at zero by the account store).
func effectsFor(txType domain.TransactionType, amount decimal.Decimal, source, dest *domain.Account) []balanceEffect {
	var effects []balanceEffect
	if source != nil {
		delta := amount.Neg()
		if source.Kind == domain.KindCreditCard {
			delta = amount
		}
		effects = append(effects, balanceEffect{
			accountID: source.ID,
			delta:     delta,
			checked:   txType == domain.TypeATMWithdraw && source.Kind != domain.KindCreditCard,
		})
	}
	if dest != nil {
		delta := amount
		if dest.Kind == domain.KindCreditCard {
			delta = amount.Neg()
		}
		effects = append(effects, balanceEffect{accountID: dest.ID, delta: delta})
	}
	return effects
}

func reversed(effects []balanceEffect) []balanceEffect {
	out := make([]balanceEffect, len(effects))
	for i, e := range effects {
		out[i] = balanceEffect{accountID: e.accountID, delta: e.delta.Neg()}
	}
	return out
}

func (s *LedgerService) applyEffects(ctx context.Context, tx *gorm.DB, effects []balanceEffect) error {
	for _, e := range effects {
		var err error
		if e.checked {
			_, err = s.accounts.Debit(ctx, tx, e.accountID, e.delta.Abs())
		} else {
			_, err = s.accounts.AdjustBalance(ctx, tx, e.accountID, e.delta)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// afterWrite runs the secondary effects of a successful create. Failures are
// logged and surfaced as warnings, never as errors.
func (s *LedgerService) afterWrite(ctx context.Context, t *domain.Transaction, originalID *int64) {
	if t.Type == domain.TypeIncome {
		if err := s.commissions.OnCreated(ctx, t); err != nil {
			s.logger.Warn("commission calculation failed",
				zap.Int64("transaction_id", t.ID), zap.Error(err))
		}
	}
	if originalID != nil {
		if err := s.subscriptions.RollForward(ctx, *originalID); err != nil {
			s.logger.Warn("subscription rollover failed",
				zap.Int64("original_id", *originalID), zap.Error(err))
			s.notifier.Notify(domain.NotifyWarning,
				fmt.Sprintf("subscription %d could not be rolled forward", *originalID))
		}
	}
	s.refreshDebt(ctx, t.DebtID)
}

func (s *LedgerService) refreshDebt(ctx context.Context, debtID *int64) {
	if debtID == nil {
		return
	}
	if err := s.debts.Refresh(ctx, *debtID); err != nil {
		s.logger.Warn("debt status refresh failed", zap.Int64("debt_id", *debtID), zap.Error(err))
	}
}

func sourceKind(source *domain.Account) domain.AccountKind {
	if source == nil {
		return "missing"
	}
	return source.Kind
}
