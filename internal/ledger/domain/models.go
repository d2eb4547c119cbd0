package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Owner is the acting business user. CommissionRate > 0 makes income
// transactions of this owner commission-eligible.
type Owner struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	Name           string          `gorm:"type:varchar(100);not null"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Owner) TableName() string { return "ledger_owners" }

// BankDetail carries bank-specific account attributes.
type BankDetail struct {
	IBAN   string `json:"iban"`
	Branch string `json:"branch"`
}

// CardDetail carries credit-card-specific account attributes.
type CardDetail struct {
	Limit        decimal.Decimal `json:"limit"`
	StatementDay int             `json:"statement_day"`
}

// AccountDetail is the kind-specific detail bag of an account. Only the
// section matching the account kind is set.
type AccountDetail struct {
	Bank *BankDetail `json:"bank,omitempty"`
	Card *CardDetail `json:"card,omitempty"`
}

// Account is a named store of value. Balance is mutated only through the
// account repository; Version backs the optimistic lock on balance writes.
// For credit cards Balance is the outstanding debt and is never negative.
type Account struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OwnerID   int64           `gorm:"not null;index"`
	Name      string          `gorm:"type:varchar(100);not null"`
	Kind      AccountKind     `gorm:"type:varchar(16);not null;index"`
	Currency  string          `gorm:"type:char(3);not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	Detail    *AccountDetail  `gorm:"serializer:json"`
	Active    bool            `gorm:"not null;default:true"`
	Version   int64           `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Account) TableName() string { return "ledger_accounts" }

// InstallmentPlan is the payload of an installment purchase. Remaining
// advances monthly until it reaches zero.
type InstallmentPlan struct {
	Count         int             `json:"count"`
	Remaining     int             `json:"remaining"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
}

// SubscriptionPlan is the payload of a recurring transaction.
type SubscriptionPlan struct {
	Period          SubscriptionPeriod `json:"period"`
	NextPaymentDate time.Time          `json:"next_payment_date"`
}

// TaxDetail holds VAT and optional withholding figures. Amounts are derived
// from the transaction amount, never set by callers.
type TaxDetail struct {
	Rate              decimal.Decimal  `json:"rate"`
	Amount            decimal.Decimal  `json:"amount"`
	WithholdingRate   *decimal.Decimal `json:"withholding_rate,omitempty"`
	WithholdingAmount *decimal.Decimal `json:"withholding_amount,omitempty"`
}

// Transaction is a record of money movement. Derived fields (BaseAmount, tax
// and installment payloads) are recomputed on every create/update. Amount is
// signed: the outgoing half of a transfer is negative, everything else
// positive. ReferenceID links a transfer's two halves to each other and a
// copied subscription instance to its original.
type Transaction struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement"`
	OwnerID              int64             `gorm:"not null;index"`
	Type                 TransactionType   `gorm:"type:varchar(24);not null;index"`
	Status               TransactionStatus `gorm:"type:varchar(12);not null;default:'completed';index"`
	Amount               decimal.Decimal   `gorm:"type:decimal(20,4);not null"`
	Currency             string            `gorm:"type:char(3);not null"`
	ExchangeRate         decimal.Decimal   `gorm:"type:decimal(16,6);not null;default:1"`
	BaseAmount           decimal.Decimal   `gorm:"type:decimal(20,4);not null"`
	Fee                  decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0"`
	Date                 time.Time         `gorm:"not null;index"`
	Description          string            `gorm:"type:text"`
	CategoryID           *int64            `gorm:"index"`
	CustomerID           *int64            `gorm:"index"`
	SupplierID           *int64            `gorm:"index"`
	SourceAccountID      *int64            `gorm:"index"`
	DestinationAccountID *int64            `gorm:"index"`
	ReferenceID          *int64            `gorm:"index"`
	DebtID               *int64            `gorm:"index"`
	GroupID              string            `gorm:"type:varchar(36);index"`
	Installment          *InstallmentPlan  `gorm:"serializer:json"`
	Subscription         *SubscriptionPlan `gorm:"serializer:json"`
	Tax                  *TaxDetail        `gorm:"serializer:json"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Transaction) TableName() string { return "ledger_transactions" }

// Debt is a standalone receivable/payable obligation. Remaining amount is
// derived as Amount minus the sum of completed linked payments.
type Debt struct {
	ID         int64             `gorm:"primaryKey;autoIncrement"`
	OwnerID    int64             `gorm:"not null;index"`
	Type       DebtType          `gorm:"type:varchar(12);not null"`
	CustomerID *int64            `gorm:"index"`
	SupplierID *int64            `gorm:"index"`
	Amount     decimal.Decimal   `gorm:"type:decimal(20,4);not null"`
	Currency   string            `gorm:"type:char(3);not null"`
	DueDate    time.Time         `gorm:"not null;index"`
	Status     TransactionStatus `gorm:"type:varchar(12);not null;default:'pending';index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Debt) TableName() string { return "ledger_debts" }

// Commission is a derived record, 1:1 with an income transaction. It follows
// the transaction's amount and lifecycle but never blocks it.
type Commission struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	OwnerID       int64           `gorm:"not null;index"`
	TransactionID int64           `gorm:"not null;uniqueIndex"`
	Rate          decimal.Decimal `gorm:"type:decimal(8,4);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Commission) TableName() string { return "ledger_commissions" }

// Category, Customer and Supplier exist for referential attachment only.
type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null"`
}

func (Category) TableName() string { return "ledger_categories" }

type Customer struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null"`
}

func (Customer) TableName() string { return "ledger_customers" }

type Supplier struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null"`
}

func (Supplier) TableName() string { return "ledger_suppliers" }
