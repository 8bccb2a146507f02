package models

// Country is a country supported by the API. URIKey is the lowercase key used
// in request paths and provider registry lookups.
type Country struct {
	ID     uint           `gorm:"primaryKey" json:"-"`
	Name   string         `gorm:"size:100;uniqueIndex:un_country_name" json:"name"`
	URIKey string         `gorm:"size:30;uniqueIndex:un_country_uri_key;column:uri_key" json:"uri_key"`
	States []CountryState `gorm:"foreignKey:CountryID" json:"states,omitempty"`
}

// CountryState is an administrative subdivision (state/province) of a country.
// Abbreviation is stored lowercase and is unique within its country, as is the
// full name.
type CountryState struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	Name         string `gorm:"size:100;uniqueIndex:un_country_state_name" json:"name"`
	Abbreviation string `gorm:"size:10;uniqueIndex:un_country_state_abbr" json:"abbreviation"`
	CountryID    uint   `gorm:"uniqueIndex:un_country_state_name;uniqueIndex:un_country_state_abbr" json:"-"`
}

// HousingRecord is one persisted month of housing statistics for a country,
// optionally scoped to a state. A nil StateID means the national aggregate.
// Prices are stored in USD; Variation is a fraction (0.012 = 1.2%).
//
// At most one record may exist per (country, year, month, state); records are
// append-only and created exclusively by the reconciliation service.
type HousingRecord struct {
	ID               uint          `gorm:"primaryKey" json:"-"`
	Year             int           `gorm:"uniqueIndex:un_housing_cell;check:year BETWEEN 1 AND 2200" json:"year"`
	Month            int           `gorm:"uniqueIndex:un_housing_cell;check:month BETWEEN 1 AND 12" json:"month"`
	SquareMeterPrice float64       `json:"square_meter_price"`
	Variation        float64       `json:"variation"`
	CountryID        uint          `gorm:"uniqueIndex:un_housing_cell" json:"-"`
	Country          *Country      `gorm:"foreignKey:CountryID" json:"-"`
	StateID          *uint         `gorm:"uniqueIndex:un_housing_cell" json:"-"`
	State            *CountryState `gorm:"foreignKey:StateID" json:"state,omitempty"`
}

// StateAbbreviation returns the record's state abbreviation, or the empty
// string for a national aggregate record.
func (r HousingRecord) StateAbbreviation() string {
	if r.State == nil {
		return ""
	}
	return r.State.Abbreviation
}
