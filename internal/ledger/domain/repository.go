package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountRepository is the only component allowed to write balances.
type AccountRepository interface {
	FindByID(ctx context.Context, id int64) (*Account, error)

	// FindCash returns the cash account for (owner, currency), or
	// ErrAccountNotFound if none has been provisioned yet.
	FindCash(ctx context.Context, ownerID int64, currency string) (*Account, error)

	Create(ctx context.Context, account *Account) error

	// AdjustBalance applies a signed delta inside the given transaction
	// session under an optimistic version check. Credit card balances are
	// clamped to zero instead of going negative. Returns the balance after
	// the write.
	AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) (decimal.Decimal, error)

	// Debit subtracts amount from the account, failing with
	// ErrInsufficientBalance when the current balance does not cover it.
	// The sufficiency check and the write happen in one critical section.
	Debit(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) (decimal.Decimal, error)

	// HasTransactions reports whether any transaction references the account.
	HasTransactions(ctx context.Context, id int64) (bool, error)

	SoftDelete(ctx context.Context, id int64) error
}

// TransactionRepository persists transaction rows. Mutating methods take the
// transaction session so callers control atomicity.
type TransactionRepository interface {
	FindByID(ctx context.Context, id int64) (*Transaction, error)
	Create(ctx context.Context, tx *gorm.DB, t *Transaction) error
	Update(ctx context.Context, tx *gorm.DB, t *Transaction) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error

	// SetReference links a row to its counterpart after both exist.
	SetReference(ctx context.Context, tx *gorm.DB, id, referenceID int64) error

	// MarkOverdue flips pending rows of the given types dated strictly
	// before cutoff to overdue and returns how many changed.
	MarkOverdue(ctx context.Context, types []TransactionType, cutoff time.Time) (int64, error)

	// ListOpenInstallments returns rows whose installment plan still has
	// remaining payments.
	ListOpenInstallments(ctx context.Context) ([]Transaction, error)

	// SumCompletedDebtPayments totals completed payments linked to a debt.
	SumCompletedDebtPayments(ctx context.Context, debtID int64) (decimal.Decimal, error)
}

// DebtRepository persists receivable/payable obligations.
type DebtRepository interface {
	FindByID(ctx context.Context, id int64) (*Debt, error)
	Create(ctx context.Context, debt *Debt) error
	UpdateStatus(ctx context.Context, id int64, status TransactionStatus) error
	MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommissionRepository persists derived commission records.
type CommissionRepository interface {
	FindByTransaction(ctx context.Context, transactionID int64) (*Commission, error)
	Create(ctx context.Context, c *Commission) error
	Update(ctx context.Context, c *Commission) error
	DeleteByTransaction(ctx context.Context, transactionID int64) error
}

// OwnerRepository resolves acting users.
type OwnerRepository interface {
	FindByID(ctx context.Context, id int64) (*Owner, error)
}

// LookupRepository is an id-valid existence check for referential
// attachments (categories, customers, suppliers).
type LookupRepository interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
