package housing

import (
	"context"

	"worldhousing/server/internal/models"
)

// RemoteRecord is a provider record normalized to the storage shape: the price
// already converted to USD for the record's own month, the variation as a
// fraction, and the state as a lowercase abbreviation (empty for the national
// aggregate).
type RemoteRecord struct {
	Year             int
	Month            int
	SquareMeterPrice float64
	Variation        float64
	State            string
}

// Provider abstracts a country's external housing-data source. Implementations
// must cover the whole requested range in as few upstream calls as possible
// and return records sorted by (state, year, month).
type Provider interface {
	// CountryKey is the URI key of the country this provider serves.
	CountryKey() string

	// Fetch retrieves and normalizes the records for every cell in the range.
	// Cells the upstream source has no data for are simply absent from the
	// result.
	Fetch(ctx context.Context, rng CellRange) ([]RemoteRecord, error)
}

// CurrencyConverter converts a provider-native amount for a given year/month
// into US dollars.
type CurrencyConverter interface {
	ToUSD(ctx context.Context, currency string, value float64, year, month int) (float64, error)
}

// Store is the persistence contract the reconciliation service depends on.
type Store interface {
	// GetCountryByKey resolves a country by its URI key. Unknown keys yield an
	// error wrapping ErrNotFound.
	GetCountryByKey(key string) (*models.Country, error)

	// GetStateByAbbreviation resolves a state within a country. Unknown
	// abbreviations yield an error wrapping ErrNotFound.
	GetStateByAbbreviation(countryID uint, abbreviation string) (*models.CountryState, error)

	// QueryHousingData returns every persisted record for the country inside
	// the date range, filtered to the range's states (or to national
	// aggregates when none are given), ordered by state, year, month.
	QueryHousingData(countryID uint, rng CellRange) ([]models.HousingRecord, error)

	// InsertHousingRecord persists a record fetched from a provider. When a
	// concurrent request already filled the same cell, the stored row is
	// returned instead of an error.
	InsertHousingRecord(record *models.HousingRecord) (*models.HousingRecord, error)
}
