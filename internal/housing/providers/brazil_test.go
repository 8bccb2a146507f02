package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldhousing/server/internal/housing"
)

// fakeConverter divides by a fixed BRL/USD rate and counts conversions.
type fakeConverter struct {
	rate  float64
	calls int
	err   error
}

func (f *fakeConverter) ToUSD(ctx context.Context, currency string, value float64, year, month int) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return value / f.rate, nil
}

func intPtr(v int) *int { return &v }

func ibgeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func nationalPayload() string {
	return `[
		{"id": "48", "resultados": [{"series": [
			{"localidade": {"id": "1"}, "serie": {"202201": "8000.50", "202202": "8100.00"}}
		]}]},
		{"id": "1196", "resultados": [{"series": [
			{"localidade": {"id": "1"}, "serie": {"202201": "1.2", "202202": "0.8"}}
		]}]}
	]`
}

func TestBrazilFetchNationalRange(t *testing.T) {
	var gotPath, gotLocality string
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLocality = r.URL.Query().Get("localidades")
		writeJSON(w, nationalPayload())
	})

	converter := &fakeConverter{rate: 5.0}
	provider := NewBrazilIBGE(ts.URL, 5*time.Second, converter, nil)

	records, err := provider.Fetch(context.Background(), housing.CellRange{
		Year: 2022, Month: 1, FinalYear: intPtr(2022), FinalMonth: intPtr(2),
	})
	require.NoError(t, err)

	// One upstream call covers both months.
	assert.Equal(t, "/api/v3/agregados/2296/periodos/202201|202202/variaveis/48|1196", gotPath)
	assert.Equal(t, "N1[all]", gotLocality)

	require.Len(t, records, 2)
	assert.Equal(t, housing.RemoteRecord{
		Year: 2022, Month: 1, SquareMeterPrice: 8000.50 / 5.0, Variation: 0.012,
	}, records[0])
	assert.Equal(t, housing.RemoteRecord{
		Year: 2022, Month: 2, SquareMeterPrice: 8100.00 / 5.0, Variation: 0.008,
	}, records[1])

	// Conversion runs exactly once per record.
	assert.Equal(t, 2, converter.calls)
}

func TestBrazilFetchStates(t *testing.T) {
	var gotLocality string
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotLocality = r.URL.Query().Get("localidades")
		writeJSON(w, `[
			{"id": "48", "resultados": [{"series": [
				{"localidade": {"id": "35"}, "serie": {"202201": "9000"}},
				{"localidade": {"id": "33"}, "serie": {"202201": "8500"}}
			]}]},
			{"id": "1196", "resultados": [{"series": [
				{"localidade": {"id": "35"}, "serie": {"202201": "2.0"}},
				{"localidade": {"id": "33"}, "serie": {"202201": "1.0"}}
			]}]}
		]`)
	})

	provider := NewBrazilIBGE(ts.URL, 5*time.Second, &fakeConverter{rate: 5.0}, nil)

	records, err := provider.Fetch(context.Background(), housing.CellRange{
		Year: 2022, Month: 1, States: []string{"sp", "rj"},
	})
	require.NoError(t, err)

	assert.Equal(t, "N3[35|33]", gotLocality)

	// Sorted by state abbreviation.
	require.Len(t, records, 2)
	assert.Equal(t, "rj", records[0].State)
	assert.Equal(t, 0.01, records[0].Variation)
	assert.Equal(t, "sp", records[1].State)
	assert.Equal(t, 9000.0/5.0, records[1].SquareMeterPrice)
}

func TestBrazilFetchUnknownStateRequested(t *testing.T) {
	provider := NewBrazilIBGE("http://ibge.invalid", time.Second, &fakeConverter{rate: 5.0}, nil)

	_, err := provider.Fetch(context.Background(), housing.CellRange{
		Year: 2022, Month: 1, States: []string{"zz"},
	})
	assert.ErrorIs(t, err, housing.ErrNotFound)
}

func TestBrazilFetchRemoteUnavailable(t *testing.T) {
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	provider := NewBrazilIBGE(ts.URL, 5*time.Second, &fakeConverter{rate: 5.0}, nil)

	_, err := provider.Fetch(context.Background(), housing.CellRange{Year: 2022, Month: 1})
	assert.ErrorIs(t, err, housing.ErrRemoteUnavailable)
}

func TestBrazilFetchNonNumericValue(t *testing.T) {
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[
			{"id": "48", "resultados": [{"series": [
				{"localidade": {"id": "1"}, "serie": {"202201": "..."}}
			]}]}
		]`)
	})

	provider := NewBrazilIBGE(ts.URL, 5*time.Second, &fakeConverter{rate: 5.0}, nil)

	_, err := provider.Fetch(context.Background(), housing.CellRange{Year: 2022, Month: 1})
	assert.ErrorIs(t, err, housing.ErrRemoteDataCorrupt)
}

func TestBrazilFetchIncompleteSeries(t *testing.T) {
	// Price series only; the variation for the period is missing.
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[
			{"id": "48", "resultados": [{"series": [
				{"localidade": {"id": "1"}, "serie": {"202201": "8000"}}
			]}]},
			{"id": "1196", "resultados": [{"series": [
				{"localidade": {"id": "1"}, "serie": {}}
			]}]}
		]`)
	})

	provider := NewBrazilIBGE(ts.URL, 5*time.Second, &fakeConverter{rate: 5.0}, nil)

	_, err := provider.Fetch(context.Background(), housing.CellRange{Year: 2022, Month: 1})
	assert.ErrorIs(t, err, housing.ErrRemoteDataCorrupt)
}

func TestBrazilFetchConverterErrorPropagates(t *testing.T) {
	ts := ibgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nationalPayload())
	})

	converter := &fakeConverter{rate: 5.0, err: errors.New("rate service down")}
	provider := NewBrazilIBGE(ts.URL, 5*time.Second, converter, nil)

	_, err := provider.Fetch(context.Background(), housing.CellRange{Year: 2022, Month: 1, FinalYear: intPtr(2022), FinalMonth: intPtr(2)})
	assert.EqualError(t, err, "rate service down")
}

func TestBrazilStateCodeRoundTrip(t *testing.T) {
	for abbreviation, code := range brazilStateCodes {
		got, ok := brazilStateFromCode(code)
		require.True(t, ok)
		assert.Equal(t, abbreviation, got)
	}
}
