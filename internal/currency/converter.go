package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the fawazahmed0 exchange-api mirror on the jsDelivr CDN.
// Dated snapshots live under "<base>@YYYY-MM-DD", the newest one under
// "<base>@latest".
const DefaultBaseURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api"

var (
	// ErrUnavailable is returned when the exchange-rate service cannot be
	// reached for either the requested date or the latest snapshot.
	ErrUnavailable = errors.New("exchange-rate service unavailable")

	// ErrUnknownCurrency is returned when the service does not know the
	// requested currency code.
	ErrUnknownCurrency = errors.New("unknown currency code")
)

// Converter normalizes provider-native amounts to USD using month-end
// exchange rates. Snapshots for past dates never change, so they are memoized
// per date; "latest" responses are never cached.
type Converter struct {
	client  *resty.Client
	baseURL string
	logger  *logrus.Logger
	now     func() time.Time

	mu    sync.RWMutex
	rates map[string]map[string]float64
}

func NewConverter(baseURL string, timeout time.Duration, logger *logrus.Logger) *Converter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Converter{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
		rates:   make(map[string]map[string]float64),
	}
}

// ToUSD converts value from the given currency into USD using the rate of the
// last calendar day of (year, month), clamped to today for months that have
// not ended yet.
func (c *Converter) ToUSD(ctx context.Context, currency string, value float64, year, month int) (float64, error) {
	rate, err := c.usdRate(ctx, currency, c.rateDate(year, month))
	if err != nil {
		return 0, err
	}
	return value / rate, nil
}

// rateDate resolves the representative date for a month: its last calendar
// day, or today when that day is still in the future. Rate services cannot
// answer for future dates.
func (c *Converter) rateDate(year, month int) time.Time {
	end := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if now := c.now().UTC(); end.After(now) {
		return now
	}
	return end
}

// usdRate returns how many units of currency one US dollar bought on the given
// date. On a failed dated lookup it falls back once to the latest snapshot; a
// second failure surfaces ErrUnavailable.
func (c *Converter) usdRate(ctx context.Context, currency string, date time.Time) (float64, error) {
	code := strings.ToLower(currency)
	day := date.Format("2006-01-02")

	c.mu.RLock()
	cached, ok := c.rates[day]
	c.mu.RUnlock()
	if ok {
		return rateFrom(cached, code)
	}

	table, err := c.fetchRates(ctx, day)
	if err != nil {
		c.logger.WithError(err).Warnf("Failed to fetch exchange rates for %s, falling back to latest", day)
		latest, err := c.fetchRates(ctx, "latest")
		if err != nil {
			return 0, fmt.Errorf("%w: no rates for %s or latest", ErrUnavailable, day)
		}
		return rateFrom(latest, code)
	}

	c.mu.Lock()
	c.rates[day] = table
	c.mu.Unlock()

	return rateFrom(table, code)
}

func (c *Converter) fetchRates(ctx context.Context, tag string) (map[string]float64, error) {
	var payload struct {
		USD map[string]float64 `json:"usd"`
	}

	url := fmt.Sprintf("%s@%s/v1/currencies/usd.json", c.baseURL, tag)
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("exchange-rate request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("exchange-rate service returned status %d", resp.StatusCode())
	}
	if payload.USD == nil {
		return nil, fmt.Errorf("malformed exchange-rate payload")
	}
	return payload.USD, nil
}

func rateFrom(table map[string]float64, code string) (float64, error) {
	rate, ok := table[code]
	if !ok {
		return 0, fmt.Errorf("%q: %w", strings.ToUpper(code), ErrUnknownCurrency)
	}
	return rate, nil
}
