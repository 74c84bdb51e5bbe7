// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend *Backend
	// serializes read-modify-write in AddToCheckpoint
	mu sync.Mutex
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// SaveCheckpoint persists a checkpoint for a collection and table.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		key := makeCheckpointKey(checkpoint.CollectionID, checkpoint.Table)
		if err := tx.Set(key, storage.MarshalCheckpoint(checkpoint)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the checkpoint for a collection and table.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, collectionID, table string) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		checkpoint, err = getCheckpoint(tx, collectionID, table)
		return err
	}, false)

	return checkpoint, err
}

func getCheckpoint(tx *badger.Txn, collectionID, table string) (*core.Checkpoint, error) {
	item, err := tx.Get(makeCheckpointKey(collectionID, table))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var checkpoint *core.Checkpoint
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
		return unmarshalErr
	})
	return checkpoint, err
}

// AddToCheckpoint increments the counts of a checkpoint, creating it if needed.
func (r *CheckpointRepository) AddToCheckpoint(ctx context.Context, collectionID, table string, payloads, batches int64) (*core.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		current, err := getCheckpoint(tx, collectionID, table)
		if err != nil {
			return err
		}
		if current == nil {
			current = &core.Checkpoint{CollectionID: collectionID, Table: table}
		}
		current.Payloads += payloads
		current.Batches += batches
		current.UpdatedAt = time.Now().UTC()

		if err := tx.Set(makeCheckpointKey(collectionID, table), storage.MarshalCheckpoint(current)); err != nil {
			return err
		}
		updated = current
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListCheckpoints returns every checkpoint in key order.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	var checkpoints []*core.Checkpoint
	err := r.backend.scanPrefix([]byte(checkpointPrefix+":"), func(val []byte) error {
		cp, err := storage.UnmarshalCheckpoint(val)
		if err != nil {
			return err
		}
		checkpoints = append(checkpoints, cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkpoints, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *CheckpointRepository) Close() error {
	return nil
}
