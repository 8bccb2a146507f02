package database

import (
	"fmt"

	"gorm.io/gorm"

	"worldhousing/server/config"
	"worldhousing/server/internal/models"
)

// Seed inserts the supported countries and their states. It is idempotent:
// rows that already exist are left untouched.
func (d *Database) Seed(countries []config.CountrySeed) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range countries {
			country := models.Country{Name: seed.Name, URIKey: seed.URIKey}
			err := tx.Where(models.Country{URIKey: seed.URIKey}).
				FirstOrCreate(&country).Error
			if err != nil {
				return fmt.Errorf("failed to seed country %q: %w", seed.URIKey, err)
			}

			for _, stateSeed := range seed.States {
				state := models.CountryState{
					Name:         stateSeed.Name,
					Abbreviation: stateSeed.Abbreviation,
					CountryID:    country.ID,
				}
				err := tx.Where(models.CountryState{
					CountryID:    country.ID,
					Abbreviation: stateSeed.Abbreviation,
				}).FirstOrCreate(&state).Error
				if err != nil {
					return fmt.Errorf("failed to seed state %q for %q: %w",
						stateSeed.Abbreviation, seed.URIKey, err)
				}
			}

			d.logger.WithField("country", seed.URIKey).Info("Seeded country reference data")
		}
		return nil
	})
}
