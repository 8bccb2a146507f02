package database

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"worldhousing/server/internal/housing"
	"worldhousing/server/internal/models"
)

// Database is the sqlite-backed store for countries, states, and housing
// records.
type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		// Surface duplicate-key violations as gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return &Database{db: db, logger: logger}, nil
}

// NewTestDB opens an in-memory database for tests. The pool is pinned to a
// single connection so every query sees the same in-memory schema.
func NewTestDB() (*Database, error) {
	d, err := NewDatabase(":memory:", nil)
	if err != nil {
		return nil, err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) RunMigrations() error {
	err := d.db.AutoMigrate(
		&models.Country{},
		&models.CountryState{},
		&models.HousingRecord{},
	)
	if err != nil {
		return err
	}

	// sqlite treats NULLs as distinct in unique indexes, so the composite
	// index over (country_id, year, month, state_id) does not stop duplicate
	// national-aggregate rows. A partial index covers the NULL case.
	return d.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS un_housing_cell_national
		ON housing_records(country_id, year, month) WHERE state_id IS NULL`).Error
}

// GetCountries returns all countries with their states, ordered by name.
func (d *Database) GetCountries() ([]models.Country, error) {
	var countries []models.Country
	err := d.db.Preload("States", func(db *gorm.DB) *gorm.DB {
		return db.Order("abbreviation")
	}).Order("name").Find(&countries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	return countries, nil
}

// GetCountryByKey resolves a country by its URI key.
func (d *Database) GetCountryByKey(key string) (*models.Country, error) {
	var country models.Country
	err := d.db.Where("uri_key = ?", key).First(&country).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("country %q: %w", key, housing.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query country %q: %w", key, err)
	}
	return &country, nil
}

// GetCountryStates returns the states of a country, ordered by abbreviation.
func (d *Database) GetCountryStates(countryID uint) ([]models.CountryState, error) {
	var states []models.CountryState
	err := d.db.Where("country_id = ?", countryID).Order("abbreviation").Find(&states).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	return states, nil
}

// GetStateByAbbreviation resolves a state within a country.
func (d *Database) GetStateByAbbreviation(countryID uint, abbreviation string) (*models.CountryState, error) {
	var state models.CountryState
	err := d.db.Where("country_id = ? AND abbreviation = ?", countryID, abbreviation).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("state %q: %w", abbreviation, housing.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state %q: %w", abbreviation, err)
	}
	return &state, nil
}

// QueryHousingData returns every persisted record for the country inside the
// date range. With states given, only rows for those states are returned;
// otherwise only national aggregate rows (state IS NULL). Results are ordered
// by state, year, month.
func (d *Database) QueryHousingData(countryID uint, rng housing.CellRange) ([]models.HousingRecord, error) {
	query := d.db.Where("country_id = ?", countryID)

	if len(rng.States) > 0 {
		query = query.Where("state_id IN (?)",
			d.db.Model(&models.CountryState{}).
				Select("id").
				Where("country_id = ? AND abbreviation IN ?", countryID, rng.States))
	} else {
		query = query.Where("state_id IS NULL")
	}

	switch {
	case rng.FinalYear == nil || rng.FinalMonth == nil:
		query = query.Where("year = ? AND month = ?", rng.Year, rng.Month)
	case *rng.FinalYear == rng.Year:
		query = query.Where("year = ? AND month BETWEEN ? AND ?", rng.Year, rng.Month, *rng.FinalMonth)
	default:
		query = query.Where("(year = ? AND month >= ?) OR (year > ? AND year < ?) OR (year = ? AND month <= ?)",
			rng.Year, rng.Month, rng.Year, *rng.FinalYear, *rng.FinalYear, *rng.FinalMonth)
	}

	var records []models.HousingRecord
	err := query.Preload("State").Order("state_id, year, month").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query housing records: %w", err)
	}
	return records, nil
}

// InsertHousingRecord persists a freshly fetched record. Two concurrent
// requests can both observe the same gap and race to fill it; the read-check
// and the insert run in one transaction, and a duplicate-key violation is
// recovered by re-reading the winner's row instead of failing the request.
func (d *Database) InsertHousingRecord(record *models.HousingRecord) (*models.HousingRecord, error) {
	var result *models.HousingRecord

	err := d.db.Transaction(func(tx *gorm.DB) error {
		existing, err := d.findCell(tx, record)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		if err := tx.Create(record).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("failed to insert housing record: %w", err)
			}
			d.logger.WithFields(logrus.Fields{
				"country_id": record.CountryID,
				"year":       record.Year,
				"month":      record.Month,
			}).Warn("Housing record cell already filled by a concurrent request")

			existing, err := d.findCell(tx, record)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("housing record vanished after duplicate insert")
			}
			result = existing
			return nil
		}

		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Database) findCell(tx *gorm.DB, record *models.HousingRecord) (*models.HousingRecord, error) {
	query := tx.Where("country_id = ? AND year = ? AND month = ?",
		record.CountryID, record.Year, record.Month)
	if record.StateID != nil {
		query = query.Where("state_id = ?", *record.StateID)
	} else {
		query = query.Where("state_id IS NULL")
	}

	var existing models.HousingRecord
	err := query.Preload("State").First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up housing record cell: %w", err)
	}
	return &existing, nil
}
