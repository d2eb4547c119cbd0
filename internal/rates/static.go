package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// StaticProvider serves quotes from a fixed table. Useful offline and in
// tests; dates are ignored.
type StaticProvider struct {
	Quotes map[string]domain.Quote
}

func (p *StaticProvider) Rate(_ context.Context, currency string, date time.Time) (domain.Quote, error) {
	quote, ok := p.Quotes[currency]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: no %s quote on %s",
			domain.ErrRateUnavailable, currency, date.Format("2006-01-02"))
	}
	return quote, nil
}
