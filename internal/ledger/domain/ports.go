package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a buying/selling rate pair of a currency against the base
// currency on a given date.
type Quote struct {
	Buying  decimal.Decimal
	Selling decimal.Decimal
}

// RateProvider supplies exchange rates. Implementations return
// ErrRateUnavailable when no quote exists for (currency, date). The base
// currency is never looked up; its rate is implicitly 1.
type RateProvider interface {
	Rate(ctx context.Context, currency string, date time.Time) (Quote, error)
}

// NotificationSink receives fire-and-forget success/failure signals. The
// core never depends on its outcome.
type NotificationSink interface {
	Notify(kind NotificationKind, message string)
}
