package housing

import "errors"

var (
	// ErrInvalidMonth is returned when a requested month falls outside 1..12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")

	// ErrInvalidRange is returned when the end of a requested range precedes
	// its start.
	ErrInvalidRange = errors.New("end of range must not precede its start")

	// ErrNotFound is returned when a country or state key does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable is returned when an external housing-data provider
	// answers with a non-success status or cannot be reached.
	ErrRemoteUnavailable = errors.New("remote housing data source unavailable")

	// ErrRemoteDataCorrupt is returned when a provider payload fails shape or
	// numeric validation.
	ErrRemoteDataCorrupt = errors.New("remote housing data source returned invalid data")

	// ErrAdapterContract is returned when a provider yields more records than
	// a single-cell request allows. This indicates a programming defect in the
	// adapter, not a data problem.
	ErrAdapterContract = errors.New("remote adapter returned more records than requested")
)
