package api

import "worldhousing/server/internal/models"

// HousingStats is the single-month response shape.
type HousingStats struct {
	SquareMeterPrice float64 `json:"square_meter_price"`
	Variation        float64 `json:"variation"`
}

// MonthlyStats is one month inside a range response.
type MonthlyStats struct {
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	SquareMeterPrice float64 `json:"square_meter_price"`
	Variation        float64 `json:"variation"`
}

// RangeStats is the range response shape: the variation compounded over the
// whole range plus the per-month breakdown.
type RangeStats struct {
	Variation float64        `json:"variation"`
	Monthly   []MonthlyStats `json:"monthly"`
}

// StateStats is the per-state single-month response shape.
type StateStats struct {
	State string `json:"state"`
	HousingStats
}

// StateRangeStats is the per-state range response shape.
type StateRangeStats struct {
	State string `json:"state"`
	RangeStats
}

func serializeStats(record models.HousingRecord) HousingStats {
	return HousingStats{
		SquareMeterPrice: record.SquareMeterPrice,
		Variation:        record.Variation,
	}
}

func serializeRange(records []models.HousingRecord) RangeStats {
	monthly := make([]MonthlyStats, len(records))
	compound := 1.0
	for i, record := range records {
		monthly[i] = MonthlyStats{
			Year:             record.Year,
			Month:            record.Month,
			SquareMeterPrice: record.SquareMeterPrice,
			Variation:        record.Variation,
		}
		compound *= 1 + record.Variation
	}
	return RangeStats{Variation: compound - 1, Monthly: monthly}
}

// serializeStateStats groups a state-scoped result into one entry per state.
// Records arrive ordered by state, year, month.
func serializeStateStats(records []models.HousingRecord) []StateStats {
	stats := make([]StateStats, len(records))
	for i, record := range records {
		stats[i] = StateStats{
			State:        record.StateAbbreviation(),
			HousingStats: serializeStats(record),
		}
	}
	return stats
}

func serializeStateRanges(records []models.HousingRecord) []StateRangeStats {
	var ranges []StateRangeStats
	start := 0
	for i := 1; i <= len(records); i++ {
		if i < len(records) && records[i].StateAbbreviation() == records[start].StateAbbreviation() {
			continue
		}
		ranges = append(ranges, StateRangeStats{
			State:      records[start].StateAbbreviation(),
			RangeStats: serializeRange(records[start:i]),
		})
		start = i
	}
	return ranges
}
