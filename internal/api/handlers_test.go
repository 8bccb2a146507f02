package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldhousing/server/config"
	"worldhousing/server/internal/database"
	"worldhousing/server/internal/housing"
	"worldhousing/server/internal/models"
)

// stubProvider serves canned records for brazil and counts upstream calls.
type stubProvider struct {
	records []housing.RemoteRecord
	err     error
	calls   int
}

func (s *stubProvider) CountryKey() string { return "brazil" }

func (s *stubProvider) Fetch(ctx context.Context, rng housing.CellRange) ([]housing.RemoteRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type testServer struct {
	router   *gin.Engine
	db       *database.Database
	provider *stubProvider
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())
	require.NoError(t, db.Seed(config.SupportedCountries))

	provider := &stubProvider{}
	service := housing.NewService(db, housing.NewRegistry(provider), nil)
	handler := NewHandler(db, service, nil)

	router := gin.New()
	SetupRoutes(router, handler)
	return &testServer{router: router, db: db, provider: provider}
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// insertRecord stores one month directly, bypassing the remote provider.
func (ts *testServer) insertRecord(t *testing.T, year, month int, price, variation float64, state string) {
	country, err := ts.db.GetCountryByKey("brazil")
	require.NoError(t, err)

	record := models.HousingRecord{
		Year:             year,
		Month:            month,
		SquareMeterPrice: price,
		Variation:        variation,
		CountryID:        country.ID,
	}
	if state != "" {
		st, err := ts.db.GetStateByAbbreviation(country.ID, state)
		require.NoError(t, err)
		record.StateID = &st.ID
	}
	_, err = ts.db.InsertHousingRecord(&record)
	require.NoError(t, err)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestGetCountries(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/countries")
	require.Equal(t, http.StatusOK, w.Code)

	var countries []models.Country
	decodeJSON(t, w, &countries)
	require.Len(t, countries, 1)
	assert.Equal(t, "Brazil", countries[0].Name)
	assert.Equal(t, "brazil", countries[0].URIKey)
	assert.Len(t, countries[0].States, 27)
}

func TestGetCountryStates(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/countries/brazil/states")
	require.Equal(t, http.StatusOK, w.Code)

	var states []models.CountryState
	decodeJSON(t, w, &states)
	require.Len(t, states, 27)
	assert.Equal(t, "ac", states[0].Abbreviation)
}

func TestGetCountryStatesUnknownCountry(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/countries/narnia/states")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHousingDataValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"non-numeric year", "/api/housing/brazil/abcd/1"},
		{"non-numeric month", "/api/housing/brazil/2022/abc"},
		{"month out of range", "/api/housing/brazil/2022/13"},
		{"inverted range", "/api/housing/brazil/2022/5/2022/2"},
		{"non-numeric final month", "/api/housing/brazil/2022/1/2022/xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.get(t, tt.path)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, ts.provider.calls)
}

func TestGetHousingDataUnknownCountry(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/housing/sweden/2022/1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHousingDataBackfillsFromProvider(t *testing.T) {
	ts := newTestServer(t)
	ts.provider.records = []housing.RemoteRecord{
		{Year: 2022, Month: 1, SquareMeterPrice: 1600.5, Variation: 0.012},
	}

	w := ts.get(t, "/api/housing/brazil/2022/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"square_meter_price": 1600.5, "variation": 0.012}`, w.Body.String())
	assert.Equal(t, 1, ts.provider.calls)

	// Second request is served from the store.
	w = ts.get(t, "/api/housing/brazil/2022/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.provider.calls)
}

func TestGetHousingDataEmptyRemote(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/housing/brazil/2022/1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Housing data not found")
}

func TestGetHousingDataRemoteUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.provider.err = fmt.Errorf("%w: upstream timeout", housing.ErrRemoteUnavailable)

	w := ts.get(t, "/api/housing/brazil/2022/1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetHousingDataStates(t *testing.T) {
	ts := newTestServer(t)
	ts.insertRecord(t, 2022, 1, 1800, 0.02, "sp")
	ts.insertRecord(t, 2022, 1, 1500, 0.01, "rj")

	w := ts.get(t, "/api/housing/brazil/2022/1?states=SP-rj")
	require.Equal(t, http.StatusOK, w.Code)

	var stats []StateStats
	decodeJSON(t, w, &stats)
	require.Len(t, stats, 2)
	// Ordered by state abbreviation.
	assert.Equal(t, "rj", stats[0].State)
	assert.Equal(t, 1500.0, stats[0].SquareMeterPrice)
	assert.Equal(t, "sp", stats[1].State)
	assert.Equal(t, 1800.0, stats[1].SquareMeterPrice)
	assert.Zero(t, ts.provider.calls)
}

func TestGetHousingDataRange(t *testing.T) {
	ts := newTestServer(t)
	ts.insertRecord(t, 2022, 1, 1000, 0.10, "")
	ts.insertRecord(t, 2022, 2, 1100, 0.10, "")
	ts.insertRecord(t, 2022, 3, 1210, 0.10, "")

	w := ts.get(t, "/api/housing/brazil/2022/1/2022/3")
	require.Equal(t, http.StatusOK, w.Code)

	var stats RangeStats
	decodeJSON(t, w, &stats)
	require.Len(t, stats.Monthly, 3)
	assert.Equal(t, 1, stats.Monthly[0].Month)
	assert.Equal(t, 3, stats.Monthly[2].Month)
	assert.Equal(t, 1210.0, stats.Monthly[2].SquareMeterPrice)
	// Compounded: 1.1^3 - 1.
	assert.InDelta(t, 0.331, stats.Variation, 1e-9)
	assert.Zero(t, ts.provider.calls)
}

func TestGetHousingDataRangeByState(t *testing.T) {
	ts := newTestServer(t)
	ts.insertRecord(t, 2022, 1, 1800, 0.10, "sp")
	ts.insertRecord(t, 2022, 2, 1980, 0.10, "sp")
	ts.insertRecord(t, 2022, 1, 1500, 0.01, "rj")
	ts.insertRecord(t, 2022, 2, 1515, 0.01, "rj")

	w := ts.get(t, "/api/housing/brazil/2022/1/2022/2?states=sp-rj")
	require.Equal(t, http.StatusOK, w.Code)

	var stats []StateRangeStats
	decodeJSON(t, w, &stats)
	require.Len(t, stats, 2)

	assert.Equal(t, "rj", stats[0].State)
	require.Len(t, stats[0].Monthly, 2)
	assert.InDelta(t, 0.0201, stats[0].Variation, 1e-9)

	assert.Equal(t, "sp", stats[1].State)
	require.Len(t, stats[1].Monthly, 2)
	assert.InDelta(t, 0.21, stats[1].Variation, 1e-9)
}
