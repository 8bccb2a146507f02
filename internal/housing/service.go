package housing

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"worldhousing/server/internal/models"
)

// Query is one caller request for housing data.
type Query struct {
	// Country is the URI key selecting both the stored rows and the remote
	// provider.
	Country string

	CellRange

	// IndividualRemote fetches each missing cell with its own single-cell
	// provider call instead of delegating the whole range in one batch.
	IndividualRemote bool
}

// Service reconciles requested housing data against the store and backfills
// gaps from the country's remote provider. Stored rows always win; only cells
// with no persisted record are fetched, converted, and saved.
type Service struct {
	store    Store
	registry *Registry
	logger   *logrus.Logger
}

func NewService(store Store, registry *Registry, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Service{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// FetchHousingData returns one record per requested cell that exists in either
// the store or the remote source. Cells found nowhere are simply absent from
// the result. Validation failures short-circuit before any store or remote
// access; remote failures abort the whole request.
func (s *Service) FetchHousingData(ctx context.Context, q Query) ([]models.HousingRecord, error) {
	cells, err := ExpandRange(q.CellRange)
	if err != nil {
		return nil, err
	}

	country, err := s.store.GetCountryByKey(q.Country)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.QueryHousingData(country.ID, q.CellRange)
	if err != nil {
		return nil, fmt.Errorf("failed to query housing data: %w", err)
	}

	if len(stored) == len(cells) {
		// Every requested cell already has a row; skip the remote source.
		return stored, nil
	}

	provider, ok := s.registry.Lookup(q.Country)
	if !ok {
		return nil, fmt.Errorf("no remote housing data source for country %q: %w", q.Country, ErrNotFound)
	}

	s.logger.WithFields(logrus.Fields{
		"country":   q.Country,
		"requested": len(cells),
		"stored":    len(stored),
	}).Info("Backfilling housing data from remote source")

	present := presentCells(stored)

	var fetched []RemoteRecord
	if q.IndividualRemote {
		fetched, err = s.fetchMissingCells(ctx, provider, cells, present)
	} else {
		fetched, err = provider.Fetch(ctx, q.CellRange)
	}
	if err != nil {
		return nil, err
	}

	results := stored
	for _, record := range fetched {
		// A batch fetch covers the whole range; cells that already have a
		// stored row keep it and the remote copy is discarded.
		cell := RequestedCell{Year: record.Year, Month: record.Month, State: record.State}
		if _, ok := present[cell]; ok {
			continue
		}

		saved, err := s.persist(country, record)
		if err != nil {
			return nil, err
		}
		results = append(results, *saved)
	}

	// Backfilled cells land after the stored rows; restore the store's
	// state-then-date ordering.
	sort.SliceStable(results, func(i, j int) bool {
		if a, b := results[i].StateAbbreviation(), results[j].StateAbbreviation(); a != b {
			return a < b
		}
		if results[i].Year != results[j].Year {
			return results[i].Year < results[j].Year
		}
		return results[i].Month < results[j].Month
	})
	return results, nil
}

func presentCells(stored []models.HousingRecord) map[RequestedCell]struct{} {
	present := make(map[RequestedCell]struct{}, len(stored))
	for _, record := range stored {
		present[RequestedCell{
			Year:  record.Year,
			Month: record.Month,
			State: record.StateAbbreviation(),
		}] = struct{}{}
	}
	return present
}

// fetchMissingCells issues one single-cell provider call per requested cell
// that has no stored record. A provider returning more than one record for a
// single-cell request violates its contract and fails the request.
func (s *Service) fetchMissingCells(ctx context.Context, provider Provider, cells []RequestedCell, present map[RequestedCell]struct{}) ([]RemoteRecord, error) {
	var fetched []RemoteRecord
	for _, cell := range cells {
		if _, ok := present[cell]; ok {
			continue
		}

		rng := CellRange{Year: cell.Year, Month: cell.Month}
		if cell.State != "" {
			rng.States = []string{cell.State}
		}
		records, err := provider.Fetch(ctx, rng)
		if err != nil {
			return nil, err
		}
		if len(records) > 1 {
			return nil, fmt.Errorf("%w: got %d records for %d-%02d %q",
				ErrAdapterContract, len(records), cell.Year, cell.Month, cell.State)
		}
		fetched = append(fetched, records...)
	}
	return fetched, nil
}

func (s *Service) persist(country *models.Country, record RemoteRecord) (*models.HousingRecord, error) {
	row := &models.HousingRecord{
		Year:             record.Year,
		Month:            record.Month,
		SquareMeterPrice: record.SquareMeterPrice,
		Variation:        record.Variation,
		CountryID:        country.ID,
	}
	if record.State != "" {
		state, err := s.store.GetStateByAbbreviation(country.ID, record.State)
		if err != nil {
			return nil, err
		}
		row.StateID = &state.ID
		row.State = state
	}
	return s.store.InsertHousingRecord(row)
}
