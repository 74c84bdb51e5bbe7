package ingestion

import "errors"

var (
	// ErrSinkRequired is returned when a sink is not provided.
	ErrSinkRequired = errors.New("sink required")

	// ErrResolverRequired is returned when a router has no sink resolver.
	ErrResolverRequired = errors.New("sink resolver required")

	// ErrIngesterClosed is returned when sending to an ingester that is shutting down or closed.
	ErrIngesterClosed = errors.New("ingester closed")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid ingestion config")

	// ErrBatchAborted is recorded for batches that could not be handed to a
	// poster because the ingester was stopped.
	ErrBatchAborted = errors.New("batch aborted by immediate shutdown")

	// ErrPanic wraps a value recovered from a panicking pipeline stage.
	ErrPanic = errors.New("pipeline stage panicked")
)
