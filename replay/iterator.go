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


package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage"
)

// BatchIterator walks the stored batches of one collection.
type BatchIterator struct {
	repo         storage.BatchRepository
	collectionID string
}

// NewBatchIterator creates an iterator over collectionID.
// An empty collectionID walks every stored batch.
func NewBatchIterator(repo storage.BatchRepository, collectionID string) *BatchIterator {
	return &BatchIterator{repo: repo, collectionID: collectionID}
}

// ForEach calls fn for every stored batch in key order.
// Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *BatchIterator) ForEach(ctx context.Context, fn func(*core.StoredBatch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batches, err := it.repo.ListBatches(ctx, it.collectionID)
	if err != nil {
		return err
	}

	for _, b := range batches {
		if err := fn(b); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// DecodePayloads turns the JSON documents of a stored batch back into payloads.
func DecodePayloads(b *core.StoredBatch) ([]core.Payload, error) {
	out := make([]core.Payload, 0, len(b.Payloads))
	for i, doc := range b.Payloads {
		var p core.Payload
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("%w: batch %d payload %d: %v", ErrCorruptPayload, b.Id, i, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: batch %d payload %d is null", ErrCorruptPayload, b.Id, i)
		}
		out = append(out, p)
	}
	return out, nil
}
