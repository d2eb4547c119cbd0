package domain

import "errors"

// Sentinel errors of the ledger core. Services wrap them with context via
// fmt.Errorf("...: %w", ...); callers branch with errors.Is.
var (
	ErrAccountNotFound           = errors.New("account not found")
	ErrRateUnavailable           = errors.New("exchange rate unavailable")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInvalidInstallmentContext = errors.New("installments are only allowed on credit card expenses")
	ErrDeletionNotAllowed        = errors.New("transaction type cannot be deleted")
	ErrValidation                = errors.New("invalid input")

	// ErrConcurrentUpdate signals an optimistic lock conflict on a balance
	// write. Repositories retry a bounded number of times before surfacing it.
	ErrConcurrentUpdate = errors.New("account modified concurrently")
)
