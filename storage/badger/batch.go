package badger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage"
)

// BatchRepository implements storage.BatchRepository for BadgerDB.
type BatchRepository struct {
	backend *Backend
}

var _ storage.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(backend *Backend) *BatchRepository {
	return &BatchRepository{
		backend: backend,
	}
}

// batchContentKey is hashed to derive a stored batch id.
func batchContentKey(batch *core.StoredBatch) string {
	var sb strings.Builder
	sb.WriteString(batch.Target)
	sb.WriteByte(0)
	sb.WriteString(batch.Table)
	sb.WriteByte(0)
	sb.WriteString(batch.CollectionID)
	for _, p := range batch.Payloads {
		sb.WriteByte(0)
		sb.WriteString(p)
	}
	return sb.String()
}

// SaveBatch stores a batch, deriving its ID from the contents when unset.
func (r *BatchRepository) SaveBatch(ctx context.Context, batch *core.StoredBatch) (*core.StoredBatch, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if batch.Id == 0 {
		batch.Id = core.IDFromContent(batchContentKey(batch))
	}
	if batch.InsertedAt.IsZero() {
		batch.InsertedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeBatchKey(batch.CollectionID, batch.Id), storage.MarshalStoredBatch(batch)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch scans for a batch by ID. Batches are keyed by collection first,
// so this is a full scan of the batch keyspace.
func (r *BatchRepository) GetBatch(ctx context.Context, id core.ID) (*core.StoredBatch, error) {
	var found *core.StoredBatch
	errFound := errors.New("found")

	err := r.backend.scanPrefix([]byte(batchPrefix+":"), func(val []byte) error {
		batch, err := storage.UnmarshalStoredBatch(val)
		if err != nil {
			return err
		}
		if batch.Id == id {
			found = batch
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// ListBatches returns the batches of one collection, or all batches when collectionID is empty.
func (r *BatchRepository) ListBatches(ctx context.Context, collectionID string) ([]*core.StoredBatch, error) {
	prefix := []byte(batchPrefix + ":")
	if collectionID != "" {
		prefix = makeCollectionBatchPrefix(collectionID)
	}

	var batches []*core.StoredBatch
	err := r.backend.scanPrefix(prefix, func(val []byte) error {
		batch, err := storage.UnmarshalStoredBatch(val)
		if err != nil {
			return err
		}
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *BatchRepository) Close() error {
	return nil
}
