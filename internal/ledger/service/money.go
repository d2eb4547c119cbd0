package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// parseAmount parses a required, strictly positive monetary string. Amounts
// travel as strings end to end to avoid float precision loss.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", domain.ErrValidation, raw)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive, got %s", domain.ErrValidation, amount)
	}
	return amount, nil
}

// parseOptional parses an optional decimal string; ok is false when raw is
// empty.
func parseOptional(raw string) (d decimal.Decimal, ok bool, err error) {
	if raw == "" {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %q is not a number", domain.ErrValidation, raw)
	}
	return d, true, nil
}

// vatAmount extracts the tax portion of a gross amount:
// amount - amount/(1+rate/100), rounded to 2 decimals.
func vatAmount(amount, rate decimal.Decimal) decimal.Decimal {
	divisor := one.Add(rate.Div(hundred))
	return amount.Sub(amount.Div(divisor)).Round(2)
}

// percentOf is amount * rate/100, rounded to 2 decimals. Used for
// withholding and commission derivation.
func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}
