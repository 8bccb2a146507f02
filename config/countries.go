package config

// StateSeed describes one administrative subdivision of a seeded country.
type StateSeed struct {
	Name         string
	Abbreviation string
}

// CountrySeed describes a country supported by the application.
type CountrySeed struct {
	Name   string
	URIKey string
	States []StateSeed
}

// SupportedCountries is the reference data seeded into the database at
// startup. The URI key must match a registered remote provider for housing
// data to be served.
var SupportedCountries = []CountrySeed{
	{
		Name:   "Brazil",
		URIKey: "brazil",
		States: []StateSeed{
			{Name: "Acre", Abbreviation: "ac"},
			{Name: "Alagoas", Abbreviation: "al"},
			{Name: "Amapá", Abbreviation: "ap"},
			{Name: "Amazonas", Abbreviation: "am"},
			{Name: "Bahia", Abbreviation: "ba"},
			{Name: "Ceará", Abbreviation: "ce"},
			{Name: "Distrito Federal", Abbreviation: "df"},
			{Name: "Espírito Santo", Abbreviation: "es"},
			{Name: "Goiás", Abbreviation: "go"},
			{Name: "Maranhão", Abbreviation: "ma"},
			{Name: "Mato Grosso", Abbreviation: "mt"},
			{Name: "Mato Grosso do Sul", Abbreviation: "ms"},
			{Name: "Minas Gerais", Abbreviation: "mg"},
			{Name: "Pará", Abbreviation: "pa"},
			{Name: "Paraíba", Abbreviation: "pb"},
			{Name: "Paraná", Abbreviation: "pr"},
			{Name: "Pernambuco", Abbreviation: "pe"},
			{Name: "Piauí", Abbreviation: "pi"},
			{Name: "Rio de Janeiro", Abbreviation: "rj"},
			{Name: "Rio Grande do Norte", Abbreviation: "rn"},
			{Name: "Rio Grande do Sul", Abbreviation: "rs"},
			{Name: "Rondônia", Abbreviation: "ro"},
			{Name: "Roraima", Abbreviation: "rr"},
			{Name: "Santa Catarina", Abbreviation: "sc"},
			{Name: "São Paulo", Abbreviation: "sp"},
			{Name: "Sergipe", Abbreviation: "se"},
			{Name: "Tocantins", Abbreviation: "to"},
		},
	},
	// Add more countries here as providers for them are implemented.
}

// GetCountrySeedByKey returns the seed entry for a URI key.
func GetCountrySeedByKey(key string) *CountrySeed {
	for i := range SupportedCountries {
		if SupportedCountries[i].URIKey == key {
			return &SupportedCountries[i]
		}
	}
	return nil
}
