package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kasaflow/kasaflow/internal/ledger/adapter/repo"
	"github.com/kasaflow/kasaflow/internal/ledger/domain"
	"github.com/kasaflow/kasaflow/internal/rates"
)

type nopSink struct{}

func (nopSink) Notify(domain.NotificationKind, string) {}

// countingProvider wraps a provider and records how often it is consulted.
type countingProvider struct {
	inner domain.RateProvider
	calls int
}

func (p *countingProvider) Rate(ctx context.Context, currency string, date time.Time) (domain.Quote, error) {
	p.calls++
	return p.inner.Rate(ctx, currency, date)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&domain.Owner{},
		&domain.Account{},
		&domain.Transaction{},
		&domain.Debt{},
		&domain.Commission{},
		&domain.Category{},
		&domain.Customer{},
		&domain.Supplier{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fixture wires the full service graph over an in-memory database.
type fixture struct {
	db            *gorm.DB
	accounts      *repo.AccountRepo
	transactions  *repo.TransactionRepo
	debtsRepo     *repo.DebtRepo
	commissions   *repo.CommissionRepo
	owners        *repo.OwnerRepo
	accountSvc    *AccountService
	commissionSvc *CommissionService
	subscriptions *SubscriptionService
	debts         *DebtService
	sweep         *SweepService
	ledger        *LedgerService
	transfers     *TransferService
}

func newFixture(t *testing.T, provider domain.RateProvider) *fixture {
	t.Helper()
	db := newTestDB(t)
	logger := zap.NewNop()

	f := &fixture{
		db:           db,
		accounts:     repo.NewAccountRepo(db),
		transactions: repo.NewTransactionRepo(db),
		debtsRepo:    repo.NewDebtRepo(db),
		commissions:  repo.NewCommissionRepo(db),
		owners:       repo.NewOwnerRepo(db),
	}
	f.accountSvc = NewAccountService(f.accounts, logger)
	f.commissionSvc = NewCommissionService(f.commissions, f.owners, logger)
	f.subscriptions = NewSubscriptionService(db, f.transactions, logger)
	f.debts = NewDebtService(f.debtsRepo, f.transactions, repo.NewCustomerLookup(db), repo.NewSupplierLookup(db), logger)
	f.sweep = NewSweepService(db, f.transactions, f.debtsRepo, logger)
	f.ledger = NewLedgerService(LedgerServiceDeps{
		DB:           db,
		Accounts:     f.accounts,
		AccountSvc:   f.accountSvc,
		Transactions: f.transactions,
		Lookups: Lookups{
			Categories: repo.NewCategoryLookup(db),
			Customers:  repo.NewCustomerLookup(db),
			Suppliers:  repo.NewSupplierLookup(db),
		},
		Rates:         provider,
		Commissions:   f.commissionSvc,
		Subscriptions: f.subscriptions,
		Debts:         f.debts,
		Notifier:      nopSink{},
		Logger:        logger,
		BaseCurrency:  "TRY",
	})
	f.transfers = NewTransferService(db, f.accounts, f.transactions, provider, nopSink{}, logger, "TRY")
	return f
}

func defaultProvider() *rates.StaticProvider {
	return &rates.StaticProvider{Quotes: map[string]domain.Quote{
		"USD": {Buying: decimal.RequireFromString("32"), Selling: decimal.RequireFromString("33")},
		"EUR": {Buying: decimal.RequireFromString("35"), Selling: decimal.RequireFromString("36")},
	}}
}

func (f *fixture) mustOwner(t *testing.T, commissionRate string) *domain.Owner {
	t.Helper()
	owner := &domain.Owner{Name: "Acme", CommissionRate: decimal.RequireFromString(commissionRate)}
	if err := f.db.Create(owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return owner
}

func (f *fixture) mustAccount(t *testing.T, ownerID int64, kind domain.AccountKind, currency, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		OwnerID:  ownerID,
		Name:     string(kind) + " " + currency,
		Kind:     kind,
		Currency: currency,
		Balance:  decimal.RequireFromString(balance),
		Active:   true,
	}
	if err := f.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func (f *fixture) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find account %d: %v", id, err)
	}
	return account.Balance
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("got %s, want %s", got, want)
	}
}
