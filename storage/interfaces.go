package storage

import (
	"context"

	"github.com/poiesic/datajobs/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases repository resources. It does not close the shared backend.
	Close() error
}

// BatchRepository persists batches delivered by the store sink.
type BatchRepository interface {
	Repository
	// SaveBatch stores a batch. The ID is derived from the batch contents when zero,
	// so saving the same batch twice overwrites rather than duplicates.
	// Sets InsertedAt if not already set.
	SaveBatch(ctx context.Context, batch *core.StoredBatch) (*core.StoredBatch, error)

	// GetBatch retrieves a batch by ID.
	// Returns ErrNotFound if the batch doesn't exist.
	GetBatch(ctx context.Context, id core.ID) (*core.StoredBatch, error)

	// ListBatches returns every batch stored for a collection, in key order.
	// An empty collectionID lists all batches.
	ListBatches(ctx context.Context, collectionID string) ([]*core.StoredBatch, error)
}

// CheckpointRepository persists the per-collection ingestion ledger.
type CheckpointRepository interface {
	Repository
	// SaveCheckpoint writes a checkpoint, replacing any previous value for
	// the same collection and table. UpdatedAt is set automatically.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a collection and table.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, collectionID, table string) (*core.Checkpoint, error)

	// AddToCheckpoint atomically increments the counts of a checkpoint,
	// creating it when missing, and returns the updated value.
	AddToCheckpoint(ctx context.Context, collectionID, table string, payloads, batches int64) (*core.Checkpoint, error)

	// ListCheckpoints returns every stored checkpoint.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)
}
