package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"worldhousing/server/internal/housing"
)

// DefaultIBGEBaseURL is the public host of IBGE's aggregate-data API.
const DefaultIBGEBaseURL = "https://servicodados.ibge.gov.br"

// IBGE aggregate 2296 (Sistema Nacional de Pesquisa de Custos e Índices da
// Construção Civil): variable 48 is the price per square meter, 1196 the
// month-over-month variation in percent.
const (
	ibgeAggregate         = "2296"
	ibgePriceVariable     = "48"
	ibgeVariationVariable = "1196"

	ibgeNationalLevel = "N1"
	ibgeStateLevel    = "N3"
)

// brazilStateCodes maps state abbreviations to the IBGE locality codes used at
// level N3.
var brazilStateCodes = map[string]int{
	"ac": 12, "al": 27, "am": 13, "ap": 16, "ba": 29, "ce": 23, "df": 53,
	"es": 32, "go": 52, "ma": 21, "mg": 31, "ms": 50, "mt": 51, "pa": 15,
	"pb": 25, "pe": 26, "pi": 22, "pr": 41, "rj": 33, "rn": 24, "ro": 11,
	"rr": 14, "rs": 43, "sc": 42, "se": 28, "sp": 35, "to": 17,
}

func brazilStateFromCode(code int) (string, bool) {
	for abbreviation, c := range brazilStateCodes {
		if c == code {
			return abbreviation, true
		}
	}
	return "", false
}

// BrazilIBGE fetches Brazilian housing statistics from the IBGE aggregate API.
// One Fetch covers the whole requested range with a single upstream call.
//
// API reference:
// https://servicodados.ibge.gov.br/api/docs/agregados?versao=3
type BrazilIBGE struct {
	client    *resty.Client
	baseURL   string
	converter housing.CurrencyConverter
	logger    *logrus.Logger
}

func NewBrazilIBGE(baseURL string, timeout time.Duration, converter housing.CurrencyConverter, logger *logrus.Logger) *BrazilIBGE {
	if baseURL == "" {
		baseURL = DefaultIBGEBaseURL
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	// No retries here: a provider failure must surface on the first attempt.
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &BrazilIBGE{
		client:    client,
		baseURL:   baseURL,
		converter: converter,
		logger:    logger,
	}
}

func (p *BrazilIBGE) CountryKey() string {
	return "brazil"
}

type ibgeVariable struct {
	ID         string       `json:"id"`
	Resultados []ibgeResult `json:"resultados"`
}

type ibgeResult struct {
	Series []ibgeSeries `json:"series"`
}

type ibgeSeries struct {
	Localidade ibgeLocality      `json:"localidade"`
	Serie      map[string]string `json:"serie"`
}

type ibgeLocality struct {
	ID string `json:"id"`
}

type ibgeCellStats struct {
	price     *float64
	variation *float64
}

// Fetch retrieves every requested cell in one IBGE call: the period parameter
// is the union of YYYYMM tokens for the range, the locality parameter either
// the national aggregate or the union of the requested states' codes. The two
// value series are merged into one record per (locality, period) and prices
// are converted to USD for each record's own month.
func (p *BrazilIBGE) Fetch(ctx context.Context, rng housing.CellRange) ([]housing.RemoteRecord, error) {
	dates, err := housing.ExpandRange(housing.CellRange{
		Year:       rng.Year,
		Month:      rng.Month,
		FinalYear:  rng.FinalYear,
		FinalMonth: rng.FinalMonth,
	})
	if err != nil {
		return nil, err
	}

	periods := make([]string, len(dates))
	for i, date := range dates {
		periods[i] = fmt.Sprintf("%d%02d", date.Year, date.Month)
	}

	locality := ibgeNationalLevel + "[all]"
	if len(rng.States) > 0 {
		codes := make([]string, len(rng.States))
		for i, state := range rng.States {
			code, ok := brazilStateCodes[strings.ToLower(state)]
			if !ok {
				return nil, fmt.Errorf("brazilian state %q: %w", state, housing.ErrNotFound)
			}
			codes[i] = strconv.Itoa(code)
		}
		locality = fmt.Sprintf("%s[%s]", ibgeStateLevel, strings.Join(codes, "|"))
	}

	url := fmt.Sprintf("%s/api/v3/agregados/%s/periodos/%s/variaveis/%s|%s",
		p.baseURL, ibgeAggregate, strings.Join(periods, "|"), ibgePriceVariable, ibgeVariationVariable)

	p.logger.WithFields(logrus.Fields{
		"periods":  len(periods),
		"locality": locality,
	}).Info("Fetching Brazilian housing data from IBGE")

	var payload []ibgeVariable
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("localidades", locality).
		SetResult(&payload).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", housing.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: IBGE returned status %d", housing.ErrRemoteUnavailable, resp.StatusCode())
	}

	data, err := restructure(payload)
	if err != nil {
		return nil, err
	}

	return p.normalize(ctx, data, len(rng.States) > 0)
}

// restructure flattens IBGE's variable-major payload into per-(locality,
// period) stats, validating every value as numeric.
func restructure(payload []ibgeVariable) (map[string]map[string]*ibgeCellStats, error) {
	data := make(map[string]map[string]*ibgeCellStats)
	for _, variable := range payload {
		if len(variable.Resultados) == 0 {
			return nil, fmt.Errorf("%w: variable %s has no results", housing.ErrRemoteDataCorrupt, variable.ID)
		}
		for _, series := range variable.Resultados[0].Series {
			locality := series.Localidade.ID
			if data[locality] == nil {
				data[locality] = make(map[string]*ibgeCellStats)
			}
			for period, raw := range series.Serie {
				value, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: non-numeric value %q for locality %s period %s",
						housing.ErrRemoteDataCorrupt, raw, locality, period)
				}
				stats := data[locality][period]
				if stats == nil {
					stats = &ibgeCellStats{}
					data[locality][period] = stats
				}
				v := value
				if variable.ID == ibgePriceVariable {
					stats.price = &v
				} else {
					stats.variation = &v
				}
			}
		}
	}
	return data, nil
}

func (p *BrazilIBGE) normalize(ctx context.Context, data map[string]map[string]*ibgeCellStats, withStates bool) ([]housing.RemoteRecord, error) {
	var records []housing.RemoteRecord
	for locality, byPeriod := range data {
		state := ""
		if withStates {
			code, err := strconv.Atoi(locality)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed IBGE locality id %q", housing.ErrRemoteDataCorrupt, locality)
			}
			abbreviation, ok := brazilStateFromCode(code)
			if !ok {
				return nil, fmt.Errorf("%w: IBGE locality %q maps to no known state", housing.ErrRemoteDataCorrupt, locality)
			}
			state = abbreviation
		}

		for period, stats := range byPeriod {
			year, month, err := parsePeriod(period)
			if err != nil {
				return nil, err
			}
			if stats.price == nil || stats.variation == nil {
				return nil, fmt.Errorf("%w: incomplete series for locality %s period %s",
					housing.ErrRemoteDataCorrupt, locality, period)
			}

			price, err := p.converter.ToUSD(ctx, "brl", *stats.price, year, month)
			if err != nil {
				return nil, err
			}

			records = append(records, housing.RemoteRecord{
				Year:             year,
				Month:            month,
				SquareMeterPrice: price,
				// IBGE reports the variation in percent.
				Variation: *stats.variation / 100,
				State:     state,
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].State != records[j].State {
			return records[i].State < records[j].State
		}
		if records[i].Year != records[j].Year {
			return records[i].Year < records[j].Year
		}
		return records[i].Month < records[j].Month
	})
	return records, nil
}

func parsePeriod(period string) (int, int, error) {
	if len(period) != 6 {
		return 0, 0, fmt.Errorf("%w: malformed IBGE period %q", housing.ErrRemoteDataCorrupt, period)
	}
	year, err := strconv.Atoi(period[:4])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed IBGE period %q", housing.ErrRemoteDataCorrupt, period)
	}
	month, err := strconv.Atoi(period[4:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed IBGE period %q", housing.ErrRemoteDataCorrupt, period)
	}
	return year, month, nil
}
