package domain

// AccountKind classifies a store of value.
type AccountKind string

const (
	KindBank         AccountKind = "bank"
	KindCreditCard   AccountKind = "credit_card"
	KindCryptoWallet AccountKind = "crypto_wallet"
	KindVirtualPOS   AccountKind = "virtual_pos"
	KindCash         AccountKind = "cash"
)

// IsValid reports whether k is a known account kind.
func (k AccountKind) IsValid() bool {
	switch k {
	case KindBank, KindCreditCard, KindCryptoWallet, KindVirtualPOS, KindCash:
		return true
	}
	return false
}

// TransactionType is the business reason for a money movement.
type TransactionType string

const (
	TypeIncome            TransactionType = "income"
	TypeExpense           TransactionType = "expense"
	TypeTransfer          TransactionType = "transfer"
	TypeCreditCardPayment TransactionType = "credit_card_payment"
	TypeATMDeposit        TransactionType = "atm_deposit"
	TypeATMWithdraw       TransactionType = "atm_withdraw"
	TypeLoanPayment       TransactionType = "loan_payment"
	TypeDebtPayment       TransactionType = "debt_payment"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer, TypeCreditCardPayment,
		TypeATMDeposit, TypeATMWithdraw, TypeLoanPayment, TypeDebtPayment:
		return true
	}
	return false
}

// Immutable reports whether rows of this type are structurally paired or
// derived and therefore can neither be edited nor deleted after creation.
func (t TransactionType) Immutable() bool {
	switch t {
	case TypeTransfer, TypeATMDeposit, TypeATMWithdraw, TypeLoanPayment, TypeCreditCardPayment:
		return true
	}
	return false
}

// TransactionStatus tracks the settlement state of a transaction or debt.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusOverdue   TransactionStatus = "overdue"
	StatusCancelled TransactionStatus = "cancelled"
)

// PaymentMethod selects how the paying account is resolved.
// MethodCash auto-provisions a cash account per (owner, currency);
// MethodAccount requires an explicitly selected account.
type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodAccount PaymentMethod = "account"
)

// SubscriptionPeriod is the rollover interval of a recurring transaction.
type SubscriptionPeriod string

const (
	PeriodDaily      SubscriptionPeriod = "daily"
	PeriodWeekly     SubscriptionPeriod = "weekly"
	PeriodMonthly    SubscriptionPeriod = "monthly"
	PeriodQuarterly  SubscriptionPeriod = "quarterly"
	PeriodBiannually SubscriptionPeriod = "biannually"
	PeriodAnnually   SubscriptionPeriod = "annually"
)

// IsValid reports whether p is a known subscription period.
func (p SubscriptionPeriod) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodBiannually, PeriodAnnually:
		return true
	}
	return false
}

// DebtType distinguishes money owed to the business from money it owes.
type DebtType string

const (
	DebtReceivable DebtType = "receivable"
	DebtPayable    DebtType = "payable"
)

// NotificationKind tags outbound notifications.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyWarning NotificationKind = "warning"
	NotifyFailure NotificationKind = "failure"
)
