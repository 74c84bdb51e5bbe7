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


// Package storage provides the storage abstraction layer for datajobs.
//
// It defines the repositories used by the store sink and the ledger
// post-processor, and the binary encoding of their records. Backends
// (currently BadgerDB, on disk or in memory) live in subpackages.
//
// # Records
//
//   - core.StoredBatch: a batch delivered through the "store" sink method
//   - core.Checkpoint: the running payload and batch counts per collection and table
//
// Records are encoded with mus-go. The encoding is positional, so fields
// may only be appended.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	checkpoints := badger.NewCheckpointRepository(backend)
//	cp, err := checkpoints.LoadCheckpoint(ctx, "nightly|op-1", "events")
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
