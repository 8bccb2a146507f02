package housing

// RequestedCell is one (year, month[, state]) unit of housing data a query
// asks for. State holds the lowercase abbreviation; empty means the national
// aggregate.
type RequestedCell struct {
	Year  int
	Month int
	State string
}

// CellRange describes the cells a caller wants. FinalYear and FinalMonth are
// optional; when either is nil the range is the single (Year, Month) cell.
// States, when non-empty, scopes the request to those subdivisions. The
// abbreviations are carried through as given; callers lowercase them first.
type CellRange struct {
	Year       int
	Month      int
	FinalYear  *int
	FinalMonth *int
	States     []string
}

// ExpandRange turns a range into the explicit list of requested cells: every
// (year, month) pair from the start to the inclusive end, stepping month by
// month with year rollover, crossed with the state list when one is given.
//
// The result is date-major (all states of a month before the next month), with
// states in their given order. The ordering matters only insofar as it makes
// the cell count stable for the coverage check in the reconciliation service.
func ExpandRange(rng CellRange) ([]RequestedCell, error) {
	if rng.Month < 1 || rng.Month > 12 {
		return nil, ErrInvalidMonth
	}
	if rng.FinalMonth != nil && (*rng.FinalMonth < 1 || *rng.FinalMonth > 12) {
		return nil, ErrInvalidMonth
	}

	dates := []RequestedCell{{Year: rng.Year, Month: rng.Month}}
	if rng.FinalYear != nil && rng.FinalMonth != nil {
		finalYear, finalMonth := *rng.FinalYear, *rng.FinalMonth
		if finalYear < rng.Year || (finalYear == rng.Year && finalMonth < rng.Month) {
			return nil, ErrInvalidRange
		}
		year, month := rng.Year, rng.Month
		for year != finalYear || month != finalMonth {
			month++
			if month > 12 {
				month = 1
				year++
			}
			dates = append(dates, RequestedCell{Year: year, Month: month})
		}
	}

	if len(rng.States) == 0 {
		return dates, nil
	}

	cells := make([]RequestedCell, 0, len(dates)*len(rng.States))
	for _, date := range dates {
		for _, state := range rng.States {
			cells = append(cells, RequestedCell{Year: date.Year, Month: date.Month, State: state})
		}
	}
	return cells, nil
}
