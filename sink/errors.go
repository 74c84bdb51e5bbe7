package sink

import "errors"

var (
	// ErrUnknownMethod is returned when no sink is registered for a method.
	ErrUnknownMethod = errors.New("unknown ingestion method")

	// ErrDuplicateMethod is returned when a method is registered twice.
	ErrDuplicateMethod = errors.New("ingestion method already registered")

	// ErrSinkRequired is returned when a nil sink or factory is supplied.
	ErrSinkRequired = errors.New("sink required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrTableRequired is returned by sinks that cannot deliver without a destination table.
	ErrTableRequired = errors.New("destination table required")

	// ErrRegistryClosed is returned when resolving from a closed registry.
	ErrRegistryClosed = errors.New("sink registry closed")
)
