package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// HTTP server port
	Port string `env:"PORT" envDefault:"8080"`

	// Path to the sqlite database file
	DatabasePath string `env:"DATABASE_PATH" envDefault:"database/worldhousing.db"`

	Remote struct {
		// Base URL of IBGE's aggregate-data API (Brazilian provider)
		IBGEBaseURL string `env:"IBGE_BASE_URL" envDefault:"https://servicodados.ibge.gov.br"`

		// Base URL of the currency-api CDN mirror used for USD conversion
		CurrencyAPIBaseURL string `env:"CURRENCY_API_BASE_URL" envDefault:"https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api"`

		// Timeout applied to every outbound provider and rate-service call
		Timeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"30s"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
