package rates

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// TCMBProvider fetches the Turkish central bank's daily indicative rate XML
// and serves buying/selling quotes against TRY. Documents are memoized per
// date so a burst of lookups costs one fetch.
type TCMBProvider struct {
	client  *http.Client
	baseURL string
	cache   *gocache.Cache
	logger  *zap.Logger
	now     func() time.Time
}

func NewTCMBProvider(baseURL string, timeout, cacheTTL time.Duration, logger *zap.Logger) *TCMBProvider {
	return &TCMBProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		logger:  logger,
		now:     time.Now,
	}
}

type tcmbDocument struct {
	XMLName    xml.Name       `xml:"Tarih_Date"`
	Currencies []tcmbCurrency `xml:"Currency"`
}

type tcmbCurrency struct {
	Code         string `xml:"CurrencyCode,attr"`
	ForexBuying  string `xml:"ForexBuying"`
	ForexSelling string `xml:"ForexSelling"`
}

// Rate implements domain.RateProvider. Missing documents, missing currencies
// and empty quote fields all surface as ErrRateUnavailable; the caller
// decides between failing and accepting a manual rate.
func (p *TCMBProvider) Rate(ctx context.Context, currency string, date time.Time) (domain.Quote, error) {
	key := cacheKey(currency, date)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(domain.Quote), nil
	}

	doc, err := p.fetch(ctx, date)
	if err != nil {
		return domain.Quote{}, err
	}

	// Cache every currency in the document; one fetch serves the whole day.
	var found *domain.Quote
	for _, c := range doc.Currencies {
		quote, err := parseQuote(c)
		if err != nil {
			continue
		}
		p.cache.SetDefault(cacheKey(c.Code, date), quote)
		if c.Code == currency {
			q := quote
			found = &q
		}
	}
	if found == nil {
		return domain.Quote{}, fmt.Errorf("%w: no %s quote on %s",
			domain.ErrRateUnavailable, currency, date.Format("2006-01-02"))
	}
	return *found, nil
}

func (p *TCMBProvider) fetch(ctx context.Context, date time.Time) (*tcmbDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.urlFor(date), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("rate source returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.Time("date", date),
		)
		return nil, fmt.Errorf("%w: source returned %d", domain.ErrRateUnavailable, resp.StatusCode)
	}

	var doc tcmbDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed rate document: %v", domain.ErrRateUnavailable, err)
	}
	return &doc, nil
}

// urlFor builds the TCMB path: today.xml for the current day, the dated
// archive path otherwise.
func (p *TCMBProvider) urlFor(date time.Time) string {
	now := p.now()
	if date.Year() == now.Year() && date.YearDay() == now.YearDay() {
		return p.baseURL + "/kurlar/today.xml"
	}
	return fmt.Sprintf("%s/kurlar/%s/%s.xml", p.baseURL, date.Format("200601"), date.Format("02012006"))
}

func parseQuote(c tcmbCurrency) (domain.Quote, error) {
	if c.ForexBuying == "" || c.ForexSelling == "" {
		return domain.Quote{}, fmt.Errorf("empty quote for %s", c.Code)
	}
	buying, err := decimal.NewFromString(c.ForexBuying)
	if err != nil {
		return domain.Quote{}, err
	}
	selling, err := decimal.NewFromString(c.ForexSelling)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Buying: buying, Selling: selling}, nil
}

func cacheKey(currency string, date time.Time) string {
	return currency + "@" + date.Format("2006-01-02")
}
